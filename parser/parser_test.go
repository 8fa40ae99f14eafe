package parser

import (
	"testing"

	"github.com/aluiziolira/go-catalog-harvester/models"
)

func TestValidateItem(t *testing.T) {
	tests := []struct {
		name    string
		item    *models.Item
		wantErr bool
	}{
		{
			name:    "valid item",
			item:    &models.Item{ID: "p1", Name: "Shirt", Category: "men-clothing"},
			wantErr: false,
		},
		{
			name:    "nil item",
			item:    nil,
			wantErr: true,
		},
		{
			name:    "missing identity",
			item:    &models.Item{Name: "Shirt", Category: "men-clothing"},
			wantErr: true,
		},
		{
			name:    "blank identity",
			item:    &models.Item{ID: "  ", Category: "men-clothing"},
			wantErr: true,
		},
		{
			name:    "missing category",
			item:    &models.Item{ID: "p1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateItem(tt.item)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateItem() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "with rupee symbol", input: "₹1,299", expected: "1299"},
		{name: "with pound symbol", input: "£51.77", expected: "51.77"},
		{name: "with spaces", input: "  Rs. 499  ", expected: "499"},
		{name: "plain", input: "10.00", expected: "10.00"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePrice(tt.input); got != tt.expected {
				t.Errorf("NormalizePrice(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeText(t *testing.T) {
	if got := NormalizeText("  Slim   Fit\tShirt \n"); got != "Slim Fit Shirt" {
		t.Fatalf("NormalizeText = %q", got)
	}
}

func TestToStringList(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []string
	}{
		{name: "comma string", input: "S, M,L,,XL", want: []string{"S", "M", "L", "XL"}},
		{name: "list", input: []any{"Red", "Blue", ""}, want: []string{"Red", "Blue"}},
		{name: "single", input: "Navy", want: []string{"Navy"}},
		{name: "nil", input: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toStringList(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("toStringList(%v) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("toStringList(%v) = %v, want %v", tt.input, got, tt.want)
				}
			}
		})
	}
}
