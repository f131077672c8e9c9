package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"2+2", "4"},
		{"2 + 3 * 4", "14"},
		{"(2 + 3) * 4", "20"},
		{"10 / 4", "2.5"},
		{"-5 + 3", "-2"},
		{"--5", "5"},
		{"-(2 + 3)", "-5"},
		{"1.5 * 2", "3"},
		{"0.1 + 0.2", "0.30000000000000004"},
		{"  7  ", "7"},
		{"((1))", "1"},
		{"2 - 3 - 4", "-5"},
		{"8 / 2 / 2", "2"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"division by zero", "1 / 0"},
		{"letters", "2 + foo"},
		{"trailing operator", "2 +"},
		{"unbalanced paren", "(2 + 3"},
		{"trailing garbage", "2 + 3 )"},
		{"injection attempt", "process.exit(1)"},
		{"double dot", "1..2 + 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Eval(tt.expr)
			assert.Error(t, err)
		})
	}
}
