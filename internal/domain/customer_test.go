package domain

import (
	"encoding/json"
	"testing"
)

func TestAddress_Format(t *testing.T) {
	tests := []struct {
		name string
		addr Address
		want string
	}{
		{"structured", StructuredAddress("12 Lake Rd", "Dhaka", "", ""), "12 Lake Rd, Dhaka"},
		{"structured skips blank parts", StructuredAddress(" 12 Lake Rd ", "", "Dhaka", "1205"), "12 Lake Rd, Dhaka, 1205"},
		{"text unchanged", TextAddress("House 5, Road 3, Dhanmondi"), "House 5, Road 3, Dhanmondi"},
		{"text keeps surrounding spaces", TextAddress("  House 5, Road 3  "), "  House 5, Road 3  "},
		{"none", Address{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.addr.Format(); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddress_JSONKeepsShape(t *testing.T) {
	for _, in := range []string{`"House 5, Road 3"`, `{"street":"12 Lake Rd","city":"Dhaka"}`} {
		var a Address
		if err := json.Unmarshal([]byte(in), &a); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", in, err)
		}
		out, err := json.Marshal(a)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		if string(out) != in {
			t.Errorf("round trip = %s, want %s", out, in)
		}
	}
}
