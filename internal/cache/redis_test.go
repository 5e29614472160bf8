package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, "cur-btc:cur-usd", PairKey("cur-btc", "cur-usd"))
	assert.Equal(t, "cur-btc:cur-usd", PairKey("cur-usd", "cur-btc"))
	assert.Equal(t, "a:a", PairKey("a", "a"))
}
