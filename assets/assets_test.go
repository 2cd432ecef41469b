package assets

import (
	"testing"

	"github.com/dwdwow/mp-go/types"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		symbol   string
		decimals int
		broker   string
		known    bool
	}{
		{"USDC", 6, "movement-usdc", true},
		{" usdc ", 6, "movement-usdc", true},
		{"MOVE", 8, "movement-move-fa", true},
		{"WETH", 8, "movement-weth", true},
		{"Foo", 8, "movement-foo", false},
	}

	for _, tt := range tests {
		a := Lookup(tt.symbol)
		if a.Decimals != tt.decimals {
			t.Errorf("Lookup(%q).Decimals = %d, want %d", tt.symbol, a.Decimals, tt.decimals)
		}
		if a.BrokerName != tt.broker {
			t.Errorf("Lookup(%q).BrokerName = %s, want %s", tt.symbol, a.BrokerName, tt.broker)
		}
		if a.Known != tt.known {
			t.Errorf("Lookup(%q).Known = %v, want %v", tt.symbol, a.Known, tt.known)
		}
	}
}

func TestInstrumentID(t *testing.T) {
	tests := []struct {
		kind types.ActionKind
		want string
	}{
		{types.ActionSupply, "movement-usdc-deposit-note"},
		{types.ActionWithdraw, "movement-usdc-deposit-note"},
		{types.ActionBorrow, "movement-usdc-loan-note"},
		{types.ActionRepay, "movement-usdc-loan-note"},
	}
	for _, tt := range tests {
		if got := InstrumentID(tt.kind, "movement-usdc"); got != tt.want {
			t.Errorf("InstrumentID(%s) = %s, want %s", tt.kind, got, tt.want)
		}
	}
}

func TestSearchNamesPrefersMoveFA(t *testing.T) {
	names := SearchNames("move")
	if len(names) == 0 || names[0] != "movement-move-fa" {
		t.Fatalf("SearchNames(move) = %v, want movement-move-fa first", names)
	}
	if got := SearchNames("ABC"); len(got) != 1 || got[0] != "abc" {
		t.Errorf("SearchNames(ABC) = %v, want [abc]", got)
	}
}
