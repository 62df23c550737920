package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freecash-dev/freecash-api/internal/models"
)

func TestFindReportHeader(t *testing.T) {
	rows := [][]string{
		{"Relatório Mensal"},
		{},
		{"Data", "Tipo", "Descrição", "Categoria", "Valor (R$)", "Status"},
		{"05/01/2024", "Despesa", "Mercado", "Alimentação", "350,00", "Pago"},
	}
	idx, cols := findReportHeader(rows)
	require.NotNil(t, cols)
	assert.Equal(t, 2, idx)
	assert.Equal(t, 0, cols.date)
	assert.Equal(t, 1, cols.tipo)
	assert.Equal(t, 2, cols.description)
	assert.Equal(t, 3, cols.category)
	assert.Equal(t, 4, cols.amount)
	assert.Equal(t, 5, cols.status)
}

func TestFindReportHeader_NotInFirstRows(t *testing.T) {
	rows := make([][]string, 12)
	for i := range rows {
		rows[i] = []string{"filler"}
	}
	rows[11] = []string{"Data", "Tipo", "Descrição", "Valor (R$)"}
	_, cols := findReportHeader(rows)
	assert.Nil(t, cols)
}

func TestReportKind(t *testing.T) {
	k, ok := ReportKind("Receita")
	assert.True(t, ok)
	assert.Equal(t, models.KindIncome, k)

	k, ok = ReportKind("despesa")
	assert.True(t, ok)
	assert.Equal(t, models.KindExpense, k)

	k, ok = ReportKind("Investimento")
	assert.True(t, ok)
	assert.Equal(t, models.KindInvestment, k)

	_, ok = ReportKind("Transferência")
	assert.False(t, ok)
}

func TestReportRealized(t *testing.T) {
	assert.True(t, reportRealized("Pago"))
	assert.True(t, reportRealized("REALIZADO"))
	assert.False(t, reportRealized("Pendente"))
	assert.False(t, reportRealized(""))
}
