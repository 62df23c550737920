package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/freecash-dev/freecash-api/internal/models"
)

func TestIsBackupWorkbook(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "contas"))
	_, err := f.NewSheet("categorias")
	require.NoError(t, err)
	assert.True(t, IsBackupWorkbook(f))

	legacy := excelize.NewFile()
	defer legacy.Close()
	require.NoError(t, legacy.SetSheetName("Sheet1", "2023"))
	_, err = legacy.NewSheet("2024")
	require.NoError(t, err)
	assert.False(t, IsBackupWorkbook(legacy))
}

func TestIsBackupWorkbook_CaseInsensitive(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "Contas"))
	_, err := f.NewSheet("CATEGORIAS")
	require.NoError(t, err)
	assert.True(t, IsBackupWorkbook(f))
}

func TestEncryptedZip_RoundTrip(t *testing.T) {
	payload := []byte("workbook bytes go here")

	wrapped, err := WrapEncryptedZip(payload, "backup.xlsx", "pw")
	require.NoError(t, err)
	assert.False(t, bytes.Contains(wrapped, payload))

	got, err := UnwrapEncryptedZip(wrapped, "pw")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestEncryptedZip_WrongPassword(t *testing.T) {
	wrapped, err := WrapEncryptedZip([]byte("secret data"), "backup.xlsx", "right")
	require.NoError(t, err)

	got, err := UnwrapEncryptedZip(wrapped, "wrong")
	if err == nil {
		assert.NotEqual(t, []byte("secret data"), got)
	}
}

func TestEncryptedZip_NotAZip(t *testing.T) {
	_, err := UnwrapEncryptedZip([]byte("definitely not a zip"), "pw")
	assert.Error(t, err)
}

func TestWorkbookExportableRows(t *testing.T) {
	invoiceID := int64(10)

	plain := &models.LedgerEntry{Kind: models.KindExpense}
	invoice := &models.LedgerEntry{Kind: models.KindExpense, IsInvoice: true}
	purchase := &models.LedgerEntry{Kind: models.KindExpense, InvoiceID: &invoiceID}

	assert.True(t, workbookExportable(plain))
	assert.False(t, workbookExportable(invoice))
	// Card purchases carry the amounts; only the derived invoice total is
	// left out of the export.
	assert.True(t, workbookExportable(purchase))
}
