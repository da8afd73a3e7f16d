package utils

import (
	"math/big"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestToDecimalUnits(t *testing.T) {
	tests := []struct {
		raw      string
		decimals uint8
		want     string
		wantErr  bool
	}{
		{"1500000000000000000", 18, "1.5", false},
		{"0", 18, "0", false},
		{"", 6, "0", false},
		{"2500000", 6, "2.5", false},
		{"0x0de0b6b3a7640000", 18, "1", false},
		{"0X10", 0, "16", false},
		{"010", 0, "10", false},
		{"1_000", 0, "", true},
		{"0b101", 0, "", true},
		{"0x", 0, "", true},
		{"abc", 18, "", true},
		{"-5", 0, "", true},
	}
	for _, tt := range tests {
		got, err := ToDecimalUnits(tt.raw, tt.decimals)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ToDecimalUnits(%q) expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ToDecimalUnits(%q) unexpected error: %v", tt.raw, err)
		}
		if got.String() != tt.want {
			t.Errorf("ToDecimalUnits(%q, %d) = %s, want %s", tt.raw, tt.decimals, got.String(), tt.want)
		}
	}
}

func TestFormatBigInt(t *testing.T) {
	if got := FormatBigInt(big.NewInt(1234500000000000000), 18); got != "1.2345" {
		t.Errorf("FormatBigInt() = %s, want 1.2345", got)
	}
	if got := FormatBigInt(nil, 18); got != "0" {
		t.Errorf("FormatBigInt(nil) = %s, want 0", got)
	}
}

func TestBatchStrings(t *testing.T) {
	got := BatchStrings([]string{"a", "b", "c", "d", "e"}, 2)
	want := [][]string{{"a", "b"}, {"c", "d"}, {"e"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BatchStrings() = %v, want %v", got, want)
	}
	if got := BatchStrings(nil, 3); len(got) != 0 {
		t.Errorf("BatchStrings(nil) = %v, want empty", got)
	}
}

func TestUniqueSorted(t *testing.T) {
	got := UniqueSorted([]string{"ethereum", "", "bitcoin", "ethereum", " uniswap "})
	want := []string{"bitcoin", "ethereum", "uniswap"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UniqueSorted() = %v, want %v", got, want)
	}
}

func TestLoadTokensFromJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eth.json")
	content := `[{"chainId":1,"address":"0x514910771AF9Ca656af840dff83E8264EcF986CA","name":"ChainLink Token","symbol":"LINK","decimals":18}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	tokens, err := LoadTokensFromJSON(path)
	if err != nil {
		t.Fatalf("LoadTokensFromJSON() error = %v", err)
	}
	if len(tokens) != 1 || tokens[0].Symbol != "LINK" || tokens[0].Decimals != 18 || tokens[0].ChainID != 1 {
		t.Errorf("unexpected tokens: %+v", tokens)
	}
}
