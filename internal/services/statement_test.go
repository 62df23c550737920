package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freecash-dev/freecash-api/internal/models"
)

func TestParseStatementLine_Debit(t *testing.T) {
	p, ok := ParseStatementLine("05/01/2024 PIX ENVIADO MERCADO CENTRAL -R$ 1.234,56")
	require.True(t, ok)
	assert.Equal(t, date(2024, time.January, 5), p.Date)
	assert.Equal(t, "PIX ENVIADO MERCADO CENTRAL", p.Description)
	assert.Equal(t, "1234.56", p.Amount.String())
	assert.Equal(t, models.KindExpense, p.Kind)
}

func TestParseStatementLine_Credit(t *testing.T) {
	p, ok := ParseStatementLine("10/02/2024 - TED RECEBIDA | R$ 500,00")
	require.True(t, ok)
	assert.Equal(t, date(2024, time.February, 10), p.Date)
	assert.Equal(t, "TED RECEBIDA", p.Description)
	assert.Equal(t, "500", p.Amount.String())
	assert.Equal(t, models.KindIncome, p.Kind)
}

func TestParseStatementLine_ShortYearAndDashes(t *testing.T) {
	p, ok := ParseStatementLine("03/04/24 COMPRA DEBITO PADARIA -15,90")
	require.True(t, ok)
	assert.Equal(t, date(2024, time.April, 3), p.Date)
	assert.Equal(t, models.KindExpense, p.Kind)

	p, ok = ParseStatementLine("15-06-2024 BOLETO CONDOMINIO -850,00")
	require.True(t, ok)
	assert.Equal(t, date(2024, time.June, 15), p.Date)
}

func TestParseStatementLine_Rejects(t *testing.T) {
	// No date.
	_, ok := ParseStatementLine("SALDO DISPONIVEL R$ 1.000,00")
	assert.False(t, ok)

	// No amount.
	_, ok = ParseStatementLine("05/01/2024 EXTRATO DE CONTA")
	assert.False(t, ok)

	// Description too short after stripping.
	_, ok = ParseStatementLine("05/01/2024 AB R$ 10,00")
	assert.False(t, ok)
}

func TestParseNubankLine(t *testing.T) {
	ref := date(2024, time.March, 15)

	p, ok := ParseNubankLine("10 jan Netflix.com R$ 39,90", ref)
	require.True(t, ok)
	assert.Equal(t, date(2024, time.January, 10), p.Date)
	assert.Equal(t, "Netflix.com", p.Description)
	assert.Equal(t, "39.9", p.Amount.String())
	assert.Equal(t, models.KindExpense, p.Kind)
}

func TestParseNubankLine_YearRollsBack(t *testing.T) {
	// A December line seen from a March reference belongs to last year.
	ref := date(2024, time.March, 15)
	p, ok := ParseNubankLine("20 dez Uber Trip 25,50", ref)
	require.True(t, ok)
	assert.Equal(t, date(2023, time.December, 20), p.Date)
}

func TestParseStatement_FailOpen(t *testing.T) {
	text := "EXTRATO\n" +
		"05/01/2024 PIX MERCADO -100,00\n" +
		"linha sem nada util\n" +
		"06/01/2024 SALARIO EMPRESA 5.000,00\n"
	lines := ParseStatement(text, BankGeneric, date(2024, time.February, 1))
	require.Len(t, lines, 2)
	assert.Equal(t, models.KindExpense, lines[0].Kind)
	assert.Equal(t, models.KindIncome, lines[1].Kind)
}
