package scpi

import "testing"

func TestDescribe(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "NO_ERROR"},
		{-224, "Illegal parameter value"},
		{-102, "Syntax error"},
		{3014, "LOW_VOLTAGE_EVENT"},
		{3099, UnidentifiedError},
		{999999, UnidentifiedError},
		{-1, UnidentifiedError},
	}
	for _, tt := range tests {
		if got := Describe(tt.code); got != tt.want {
			t.Errorf("Describe(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		code int
		want Class
	}{
		{0, ClassNone},
		{3011, ClassHardware},
		{3099, ClassHardware},
		{-224, ClassCommunication},
		{-102, ClassCommunication},
		{42, ClassUnknown},
	}
	for _, tt := range tests {
		if got := ClassOf(tt.code); got != tt.want {
			t.Errorf("ClassOf(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestStatusText(t *testing.T) {
	if got := StatusText(3); got != "board in normal state" {
		t.Errorf("StatusText(3) = %q", got)
	}
	if got := StatusText(99); got != "unknown state" {
		t.Errorf("StatusText(99) = %q", got)
	}
}
