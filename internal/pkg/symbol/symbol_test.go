package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, KindAShare, Classify("600519"))
	assert.Equal(t, KindAShare, Classify("000001"))
	assert.Equal(t, KindCrypto, Classify("BTCUSDT"))
	assert.Equal(t, KindCrypto, Classify("60051"))
	assert.Equal(t, KindCrypto, Classify("60051X"))
	assert.Equal(t, KindCrypto, Classify(""))
}

func TestEastmoneySecID(t *testing.T) {
	assert.Equal(t, "1.600519", EastmoneySecID("600519"))
	assert.Equal(t, "0.000001", EastmoneySecID("000001"))
	assert.Equal(t, "0.300750", EastmoneySecID("300750"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "600519", Normalize(" 600519 "))
	assert.Equal(t, "BTCUSDT", Normalize("btcusdt"))
}
