package money

import (
	"encoding/json"
	"testing"
)

func TestMoney_QuantizeHalfUp(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.005", "1.01"},
		{"1.004", "1.00"},
		{"2.675", "2.68"},
		{"-1.005", "-1.01"},
		{"100", "100.00"},
		{"19.998", "20.00"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := MustParse(tt.in).String()
			if got != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestCalculateVATAmount(t *testing.T) {
	tests := []struct {
		name string
		net  string
		rate string
		want string
	}{
		{"standard UK", "100.00", "0.20", "20.00"},
		{"zero rated", "50.00", "0.00", "0.00"},
		{"SA live tutorial", "500.00", "0.15", "75.00"},
		{"rounds half up", "99.99", "0.20", "20.00"},
		{"tie goes up", "0.25", "0.10", "0.03"},
		{"Irish rate", "10.01", "0.23", "2.30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateVATAmount(MustParse(tt.net), MustParseRate(tt.rate))
			if got.String() != tt.want {
				t.Errorf("CalculateVATAmount(%s, %s) = %s, want %s", tt.net, tt.rate, got, tt.want)
			}
		})
	}
}

func TestMoney_Arithmetic(t *testing.T) {
	line := MustParse("33.33").MulInt(3)
	if line.String() != "99.99" {
		t.Fatalf("33.33 x 3 = %s, want 99.99", line)
	}
	if got := line.Add(MustParse("0.01")); got.String() != "100.00" {
		t.Errorf("Add = %s", got)
	}
	if got := line.Sub(MustParse("9.99")); got.String() != "90.00" {
		t.Errorf("Sub = %s", got)
	}
	if got := Sum(MustParse("1.10"), MustParse("2.20"), MustParse("3.30")); got.String() != "6.60" {
		t.Errorf("Sum = %s", got)
	}
	if got := MustParse("2.50").Mul(MustParse("1.50")); got.String() != "3.75" {
		t.Errorf("Mul = %s", got)
	}
}

func TestParseRate(t *testing.T) {
	t.Run("accepts ratio strings", func(t *testing.T) {
		for in, want := range map[string]string{"0.2": "0.2000", "0.2000": "0.2000", "0.135": "0.1350", "0": "0.0000"} {
			r, err := ParseRate(in)
			if err != nil {
				t.Fatalf("ParseRate(%q) error: %v", in, err)
			}
			if r.String() != want {
				t.Errorf("ParseRate(%q) = %s, want %s", in, r, want)
			}
		}
	})

	t.Run("rejects other shapes", func(t *testing.T) {
		for _, in := range []string{"20%", "0.12345", "1.5", "-0.1", "abc"} {
			if _, err := ParseRate(in); err == nil {
				t.Errorf("ParseRate(%q) expected error", in)
			}
		}
	})
}

func TestRate_Percent(t *testing.T) {
	tests := map[string]string{
		"0.2000": "20%",
		"0.0000": "0%",
		"0.1350": "13.5%",
		"0.2300": "23%",
	}
	for in, want := range tests {
		if got := MustParseRate(in).Percent(); got != want {
			t.Errorf("Percent(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestMoney_JSON(t *testing.T) {
	payload := struct {
		Net  Money `json:"net"`
		Rate Rate  `json:"rate"`
	}{Net: MustParse("120"), Rate: MustParseRate("0.2")}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"net":"120.00","rate":"0.2000"}` {
		t.Errorf("unexpected JSON %s", data)
	}

	var back struct {
		Net Money `json:"net"`
	}
	if err := json.Unmarshal([]byte(`{"net": 12.345}`), &back); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if back.Net.String() != "12.35" {
		t.Errorf("number input quantized to %s, want 12.35", back.Net)
	}
}
