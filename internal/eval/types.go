package eval

// Package eval 实现建议回测的纯计算核心：建议文本分类、单条评估、汇总统计。
// 所有函数无副作用，不触碰存储与网络。

// Direction 表示建议隐含的预期方向。
type Direction string

const (
	DirectionUp      Direction = "up"
	DirectionDown    Direction = "down"
	DirectionNotDown Direction = "not_down"
	DirectionFlat    Direction = "flat"
)

// Position 表示建议隐含的持仓姿态。
type Position string

const (
	PositionLong Position = "long"
	PositionCash Position = "cash"
)

// Status 表示单条评估的完成状态。
type Status string

const (
	StatusCompleted    Status = "completed"
	StatusInsufficient Status = "insufficient_data"
	StatusError        Status = "error"
)

// Outcome 表示方向判断的胜负结果；空串表示无法判定。
type Outcome string

const (
	OutcomeWin     Outcome = "win"
	OutcomeLoss    Outcome = "loss"
	OutcomeNeutral Outcome = "neutral"
)

// FirstHit 表示前向窗口内最先触发的止损/止盈目标。
type FirstHit string

const (
	FirstHitStopLoss      FirstHit = "stop_loss"
	FirstHitTakeProfit    FirstHit = "take_profit"
	FirstHitAmbiguous     FirstHit = "ambiguous"
	FirstHitNeither       FirstHit = "neither"
	FirstHitNotApplicable FirstHit = "not_applicable"
)

// 模拟平仓原因。
const (
	ExitReasonStopLoss     = "stop_loss"
	ExitReasonTakeProfit   = "take_profit"
	ExitReasonAmbiguousSL  = "ambiguous_stop_loss"
	ExitReasonWindowEnd    = "window_end"
)

// 汇总的作用域：overall 汇总全部标的，stock 汇总单一标的。
const (
	ScopeOverall = "overall"
	ScopeStock   = "stock"

	// OverallCode 是 overall 汇总行占用的保留代码，不允许作为真实标的代码。
	OverallCode = "__overall__"
)

// DailyBar 抽象一根日线。价格字段允许缺失（返回 nil），
// 使引擎与具体存储实现解耦。
type DailyBar interface {
	TradeDate() string // "2006-01-02"
	OpenPrice() *float64
	HighPrice() *float64
	LowPrice() *float64
	ClosePrice() *float64
}

// Bar 是 DailyBar 的最小实现，供网关与测试使用。
type Bar struct {
	Date  string
	Open  *float64
	High  *float64
	Low   *float64
	Close *float64
}

func (b Bar) TradeDate() string     { return b.Date }
func (b Bar) OpenPrice() *float64  { return b.Open }
func (b Bar) HighPrice() *float64  { return b.High }
func (b Bar) LowPrice() *float64   { return b.Low }
func (b Bar) ClosePrice() *float64 { return b.Close }

// Config 参数化评估算法。EngineVersion 是显式携带的算法版本号，
// 历史结果行自描述，算法升级后新旧行不会混淆。
type Config struct {
	WindowDays     int
	NeutralBandPct float64
	EngineVersion  string
}

// Input 是单条评估的全部输入。
type Input struct {
	RecordID   int64
	Code       string
	Advice     string
	AnchorDate string // "2006-01-02"
	StartPrice *float64
	Bars       []DailyBar // 锚点次日起的前向日线，升序
	StopLoss   *float64
	TakeProfit *float64
}

// Result 是一条建议的评估结论。可空字段以指针表达。
type Result struct {
	RecordID      int64
	Code          string
	Advice        string
	AnchorDate    string
	WindowDays    int
	EngineVersion string

	Status    Status
	Position  Position
	Direction Direction

	StartPrice     *float64
	EndClose       *float64
	MaxHigh        *float64
	MinLow         *float64
	StockReturnPct *float64

	Outcome          Outcome
	DirectionCorrect *bool

	StopLoss            *float64
	TakeProfit          *float64
	HitStopLoss         *bool
	HitTakeProfit       *bool
	FirstHit            FirstHit
	FirstHitDate        *string
	FirstHitTradingDays *int

	SimEntryPrice *float64
	SimExitPrice  *float64
	SimExitReason string
	SimReturnPct  *float64

	ErrorMessage string
}
