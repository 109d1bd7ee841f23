package scpi

import (
	"math"
	"testing"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"784nm", 784},
		{"  -3.5 mW ", -3.5},
		{"12kg", 12},
		{"3.14 m", 3.14},
		{"250", 250},
		{"0", 0},
		{"-0.5", -0.5},
		{"32.4C", 32.4},
		{"100 ", 100},
	}
	for _, tt := range tests {
		got := ParseNumber(tt.in)
		if got != tt.want {
			t.Errorf("ParseNumber(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseNumberNoMatch(t *testing.T) {
	for _, in := range []string{"n/a", "", "mW 3.5", "--5", "1.2.3", "abc"} {
		got := ParseNumber(in)
		if !math.IsNaN(got) {
			t.Errorf("ParseNumber(%q) = %v, want NaN", in, got)
		}
	}
}

func TestParseErrorReply(t *testing.T) {
	tests := []struct {
		in      string
		code    int
		message string
		ok      bool
	}{
		{`0,"NO_ERROR"`, 0, "NO_ERROR", true},
		{`-224,"Illegal parameter value"`, -224, "Illegal parameter value", true},
		{` 3014 , "LOW_VOLTAGE_EVENT" `, 3014, "LOW_VOLTAGE_EVENT", true},
		{`0`, 0, "0", true},
		{`garbage`, 0, "garbage", false},
		{``, 0, "", false},
	}
	for _, tt := range tests {
		code, message, ok := ParseErrorReply(tt.in)
		if code != tt.code || message != tt.message || ok != tt.ok {
			t.Errorf("ParseErrorReply(%q) = (%d, %q, %v), want (%d, %q, %v)",
				tt.in, code, message, ok, tt.code, tt.message, tt.ok)
		}
	}
}

func TestCommandBuilders(t *testing.T) {
	if got := Query("Laser:Current"); got != "Laser:Current?" {
		t.Errorf("Query = %q", got)
	}
	if got := Set("Laser:Current", Int(250)); got != "Laser:Current 250" {
		t.Errorf("Set int = %q", got)
	}
	if got := Set("Laser:Enable", Bool(true)); got != "Laser:Enable 1" {
		t.Errorf("Set bool = %q", got)
	}
	if got := Set("TEC:SETpoint", Float(32.5)); got != "TEC:SETpoint 32.5" {
		t.Errorf("Set float = %q", got)
	}
	if got := Set("Parameters:Restore"); got != "Parameters:Restore" {
		t.Errorf("Set no args = %q", got)
	}
	if got := Set("Calibrate:Power", Int(3), Float(18.2), Int(0)); got != "Calibrate:Power 3 18.2 0" {
		t.Errorf("Set multi = %q", got)
	}
}
