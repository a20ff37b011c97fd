package ledger

import (
	"math/big"
	"testing"
)

func bi(v int64) *big.Int { return big.NewInt(v) }

func TestQuoteExactInput(t *testing.T) {
	tests := []struct {
		name             string
		sell, buy, in    int64
		want             int64
	}{
		{"even split", 100, 50, 25, 50},
		{"full consumption", 100, 50, 50, 100},
		{"rounds down", 10, 3, 1, 3},       // 10*1/3 = 3.33
		{"rounds down again", 10, 3, 2, 6}, // 10*2/3 = 6.66
		{"one for one", 7, 7, 3, 3},
		{"tiny order", 1, 1000, 999, 0}, // dust input buys nothing
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuoteExactInput(bi(tt.sell), bi(tt.buy), bi(tt.in))
			if got.Cmp(bi(tt.want)) != 0 {
				t.Errorf("QuoteExactInput(%d, %d, %d) = %s, want %d",
					tt.sell, tt.buy, tt.in, got, tt.want)
			}
		})
	}
}

func TestQuoteExactOutput(t *testing.T) {
	tests := []struct {
		name            string
		sell, buy, out  int64
		want            int64
	}{
		{"even split", 100, 50, 50, 25},
		{"full consumption", 100, 50, 100, 50},
		{"rounds up", 10, 3, 3, 1},  // 3*3/10 = 0.9
		{"rounds up again", 10, 3, 7, 3}, // 3*7/10 = 2.1
		{"one for one", 7, 7, 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuoteExactOutput(bi(tt.sell), bi(tt.buy), bi(tt.out))
			if got.Cmp(bi(tt.want)) != 0 {
				t.Errorf("QuoteExactOutput(%d, %d, %d) = %s, want %d",
					tt.sell, tt.buy, tt.out, got, tt.want)
			}
		})
	}
}

// TestQuoteRoundingFavorsMaker checks the two quote directions against
// each other: buying back the exact-input payout never costs less than
// the original input, so no round trip can extract value from the maker.
func TestQuoteRoundingFavorsMaker(t *testing.T) {
	cases := []struct{ sell, buy, in int64 }{
		{1000, 333, 100},
		{999, 1000, 501},
		{7, 13, 5},
		{1_000_000_007, 999_999_937, 123_456_789},
	}

	for _, c := range cases {
		out := QuoteExactInput(bi(c.sell), bi(c.buy), bi(c.in))
		if out.Sign() == 0 {
			continue
		}
		back := QuoteExactOutput(bi(c.sell), bi(c.buy), out)
		if back.Cmp(bi(c.in)) > 0 {
			t.Errorf("(%d,%d): input %d yields %s, but %s costs %s back",
				c.sell, c.buy, c.in, out, out, back)
		}
	}
}
