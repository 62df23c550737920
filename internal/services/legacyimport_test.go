package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freecash-dev/freecash-api/internal/models"
)

func TestFifthBusinessDay(t *testing.T) {
	// January 2024 starts on a Monday, so the fifth weekday is Friday the
	// 5th.
	assert.Equal(t, date(2024, time.January, 5), FifthBusinessDay(2024, time.January))

	// June 2024 starts on a Saturday; weekdays are 3,4,5,6,7.
	assert.Equal(t, date(2024, time.June, 7), FifthBusinessDay(2024, time.June))

	// September 2024 starts on a Sunday; weekdays are 2,3,4,5,6.
	assert.Equal(t, date(2024, time.September, 6), FifthBusinessDay(2024, time.September))
}

func TestParseLegacyLabel(t *testing.T) {
	label, day := ParseLegacyLabel("ALUGUEL d/10")
	assert.Equal(t, "ALUGUEL", label)
	assert.Equal(t, 10, day)

	label, day = ParseLegacyLabel("INTERNET")
	assert.Equal(t, "INTERNET", label)
	assert.Equal(t, 1, day)

	label, day = ParseLegacyLabel("CONDOMINIO D/5")
	assert.Equal(t, "CONDOMINIO", label)
	assert.Equal(t, 5, day)
}

func TestParseBRLAmount(t *testing.T) {
	cases := map[string]string{
		"1.234,56":    "1234.56",
		"R$ 99,90":    "99.90",
		"150":         "150",
		"10.5":        "10.5",
		"R$1.000,00":  "1000.00",
	}
	for in, want := range cases {
		got, err := ParseBRLAmount(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.String(), in)
	}

	_, err := ParseBRLAmount("")
	assert.Error(t, err)
	_, err = ParseBRLAmount("-")
	assert.Error(t, err)
}

func TestLegacyPaymentMethod(t *testing.T) {
	assert.Equal(t, MethodCreditCard, LegacyPaymentMethod("CARTAO", "NETFLIX", models.KindExpense))
	assert.Equal(t, MethodPix, LegacyPaymentMethod("FIXO CASA", "FAXINA PIX", models.KindExpense))
	assert.Equal(t, MethodBoleto, LegacyPaymentMethod("FIXO CASA", "IPTU BOLETO", models.KindExpense))
	assert.Equal(t, MethodDebit, LegacyPaymentMethod("FIXO PESSOAL", "ACADEMIA DEBITO", models.KindExpense))

	// Fallbacks by kind when no keyword matches.
	assert.Equal(t, MethodPix, LegacyPaymentMethod("", "SALARIO", models.KindIncome))
	assert.Equal(t, MethodBoleto, LegacyPaymentMethod("FIXO CASA", "ALUGUEL", models.KindExpense))
}

func TestLegacyCategories(t *testing.T) {
	assert.Equal(t, "Receita", CategoryLegacyIncome)
	assert.Equal(t, "Gastos", CategoryLegacyExpense)

	cats := &legacyCategories{
		income:  &models.Category{ID: 7, Name: CategoryLegacyIncome},
		expense: &models.Category{ID: 9, Name: CategoryLegacyExpense},
	}
	assert.Equal(t, int64(7), cats.forKind(models.KindIncome))
	assert.Equal(t, int64(9), cats.forKind(models.KindExpense))
	// Investment rows share the expense bucket.
	assert.Equal(t, int64(9), cats.forKind(models.KindInvestment))
}
