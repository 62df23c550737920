package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/freecash-dev/freecash-api/internal/models"
	"github.com/freecash-dev/freecash-api/internal/store"
)

// BackupVersion is stamped into every artifact's metadata.
const BackupVersion = "1.0"

const backupApp = "core"

// Model names used as keys inside the artifact's data section.
const (
	modelUserConfig    = "UserConfig"
	modelCategory      = "Category"
	modelPaymentMethod = "PaymentMethod"
	modelCard          = "Card"
	modelSubscription  = "Subscription"
	modelLedgerEntry   = "LedgerEntry"
)

const (
	backupDateLayout = "2006-01-02"
)

// BackupMetadata describes the artifact itself.
type BackupMetadata struct {
	Version     string `json:"version"`
	GeneratedAt string `json:"generated_at"`
	Username    string `json:"username"`
}

type backupFile struct {
	Metadata BackupMetadata                        `json:"metadata"`
	Data     map[string]map[string][]backupRecord `json:"data"`
}

type backupRecord map[string]any

// RestoreSummary reports what a restore rebuilt, per model.
type RestoreSummary struct {
	Restored map[string]int `json:"restored"`
	Username string         `json:"username"`
}

// BackupService turns a user's full dataset into an encrypted portable
// artifact and back. Models are handled through a static registry ordered by
// dependency rank, so restore can rebuild foreign keys in one forward pass.
type BackupService struct {
	store *store.Store
	log   *zap.Logger
}

func NewBackupService(st *store.Store, log *zap.Logger) *BackupService {
	return &BackupService{store: st, log: log}
}

// refMap resolves artifact UUIDs to the local row ids created during a
// restore.
type refMap struct {
	ids map[string]map[string]int64
}

func newRefMap() *refMap {
	return &refMap{ids: make(map[string]map[string]int64)}
}

func (r *refMap) put(model, uid string, id int64) {
	m, ok := r.ids[model]
	if !ok {
		m = make(map[string]int64)
		r.ids[model] = m
	}
	m[uid] = id
}

func (r *refMap) get(model, uid string) *int64 {
	if uid == "" {
		return nil
	}
	if id, ok := r.ids[model][uid]; ok {
		return &id
	}
	return nil
}

// record field readers. Artifacts come from JSON, so numbers arrive as
// float64 and everything is optional.

func recString(rec backupRecord, key string) string {
	if v, ok := rec[key].(string); ok {
		return v
	}
	return ""
}

func recStringPtr(rec backupRecord, key string) *string {
	if v, ok := rec[key].(string); ok {
		return &v
	}
	return nil
}

func recBool(rec backupRecord, key string) bool {
	v, _ := rec[key].(bool)
	return v
}

func recInt(rec backupRecord, key string) int {
	if v, ok := rec[key].(float64); ok {
		return int(v)
	}
	return 0
}

func recIntPtr(rec backupRecord, key string) *int {
	if v, ok := rec[key].(float64); ok {
		n := int(v)
		return &n
	}
	return nil
}

func recDecimal(rec backupRecord, key string) (decimal.Decimal, error) {
	switch v := rec[key].(type) {
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return decimal.Zero, fmt.Errorf("field %s: missing amount", key)
	}
}

func recDate(rec backupRecord, key string) (time.Time, error) {
	s, ok := rec[key].(string)
	if !ok || s == "" {
		return time.Time{}, fmt.Errorf("field %s: missing date", key)
	}
	return time.Parse(backupDateLayout, s)
}

func recDatePtr(rec backupRecord, key string) (*time.Time, error) {
	s, ok := rec[key].(string)
	if !ok || s == "" {
		return nil, nil
	}
	t, err := time.Parse(backupDateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func fmtDatePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(backupDateLayout)
}

// Export serializes everything the user owns and seals it with the password.
func (s *BackupService) Export(ctx context.Context, userID uuid.UUID, password string) (string, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}

	data := map[string][]backupRecord{}

	cfg, err := s.store.GetOrCreateConfig(ctx, userID)
	if err != nil {
		return "", err
	}
	data[modelUserConfig] = []backupRecord{{
		"uuid":             cfg.UUID.String(),
		"default_currency": cfg.DefaultCurrency,
	}}

	categories, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return "", err
	}
	catUUID := map[int64]string{}
	for _, c := range categories {
		catUUID[c.ID] = c.UUID.String()
		data[modelCategory] = append(data[modelCategory], backupRecord{
			"uuid":       c.UUID.String(),
			"name":       c.Name,
			"kind":       string(c.Kind),
			"is_default": c.IsDefault,
		})
	}

	methods, err := s.store.ListPaymentMethods(ctx, userID)
	if err != nil {
		return "", err
	}
	pmUUID := map[int64]string{}
	for _, m := range methods {
		pmUUID[m.ID] = m.UUID.String()
		data[modelPaymentMethod] = append(data[modelPaymentMethod], backupRecord{
			"uuid":   m.UUID.String(),
			"name":   m.Name,
			"active": m.Active,
		})
	}

	cards, err := s.store.ListCards(ctx, userID)
	if err != nil {
		return "", err
	}
	cardUUID := map[int64]string{}
	for _, c := range cards {
		cardUUID[c.ID] = c.UUID.String()
		rec := backupRecord{
			"uuid":        c.UUID.String(),
			"name":        c.Name,
			"brand":       c.Brand,
			"last_digits": c.LastDigits,
			"closing_day": c.ClosingDay,
			"due_day":     c.DueDay,
			"active":      c.Active,
		}
		if c.Limit != nil {
			rec["credit_limit"] = c.Limit.StringFixed(2)
		}
		data[modelCard] = append(data[modelCard], rec)
	}

	subs, err := s.store.ListSubscriptions(ctx, userID)
	if err != nil {
		return "", err
	}
	subUUID := map[int64]string{}
	for _, sub := range subs {
		subUUID[sub.ID] = sub.UUID.String()
		data[modelSubscription] = append(data[modelSubscription], backupRecord{
			"uuid":                sub.UUID.String(),
			"description":         sub.Description,
			"amount":              sub.Amount.StringFixed(2),
			"kind":                string(sub.Kind),
			"due_day":             sub.DueDay,
			"active":              sub.Active,
			"next_generation":     sub.NextGeneration.Format(backupDateLayout),
			"category_uuid":       idRef(catUUID, sub.CategoryID),
			"payment_method_uuid": idRef(pmUUID, sub.PaymentMethodID),
			"card_uuid":           idRef(cardUUID, sub.CardID),
		})
	}

	entries, err := s.store.ListUserEntries(ctx, userID)
	if err != nil {
		return "", err
	}
	entryUUID := map[int64]string{}
	for _, e := range entries {
		entryUUID[e.ID] = e.UUID.String()
	}
	for _, e := range entries {
		rec := backupRecord{
			"uuid":                e.UUID.String(),
			"kind":                string(e.Kind),
			"description":         e.Description,
			"amount":              e.Amount.StringFixed(2),
			"scheduled_date":      e.ScheduledDate.Format(backupDateLayout),
			"realized":            e.Realized,
			"realized_date":       fmtDatePtr(e.RealizedDate),
			"purchase_date":       fmtDatePtr(e.PurchaseDate),
			"card_category":       e.CardCategory,
			"is_invoice":          e.IsInvoice,
			"installment":         e.Installment,
			"installment_index":   e.InstallmentIndex,
			"installment_count":   e.InstallmentCount,
			"is_legacy":           e.Legacy,
			"origin_year":         e.OriginYear,
			"origin_month":        e.OriginMonth,
			"origin_label":        e.OriginLabel,
			"category_uuid":       idRef(catUUID, e.CategoryID),
			"payment_method_uuid": idRef(pmUUID, e.PaymentMethodID),
			"card_uuid":           idRef(cardUUID, e.CardID),
			"subscription_uuid":   idRef(subUUID, e.SubscriptionID),
			"invoice_uuid":        idRef(entryUUID, e.InvoiceID),
			"group_uuid":          idRef(entryUUID, e.InstallmentGroup),
		}
		data[modelLedgerEntry] = append(data[modelLedgerEntry], rec)
	}

	file := backupFile{
		Metadata: BackupMetadata{
			Version:     BackupVersion,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			Username:    user.Username,
		},
		Data: map[string]map[string][]backupRecord{backupApp: data},
	}
	payload, err := json.Marshal(file)
	if err != nil {
		return "", fmt.Errorf("encode backup: %w", err)
	}

	artifact, err := EncryptBackup(payload, password)
	if err != nil {
		return "", err
	}
	if err := s.store.SetLastExport(ctx, userID, time.Now().UTC()); err != nil {
		return "", err
	}
	s.log.Info("backup exported",
		zap.String("user_id", userID.String()),
		zap.Int("entries", len(entries)))
	return artifact, nil
}

func idRef(uuids map[int64]string, id *int64) any {
	if id == nil {
		return nil
	}
	if u, ok := uuids[*id]; ok {
		return u
	}
	return nil
}

// Restore decrypts an artifact and rebuilds the user's dataset from it. The
// existing rows are removed in reverse dependency order inside the same
// transaction, so a failed restore leaves the account untouched.
func (s *BackupService) Restore(ctx context.Context, userID uuid.UUID, artifact, password string) (*RestoreSummary, error) {
	payload, err := DecryptBackup(artifact, password)
	if err != nil {
		return nil, err
	}
	var file backupFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}
	data := file.Data[backupApp]
	if data == nil {
		return nil, fmt.Errorf("backup has no %q data section", backupApp)
	}

	summary := &RestoreSummary{
		Restored: map[string]int{},
		Username: file.Metadata.Username,
	}

	err = s.store.WithTx(ctx, func(st *store.Store) error {
		if err := st.AcquireImportLock(ctx); err != nil {
			return err
		}
		if err := st.DeleteUserEntries(ctx, userID); err != nil {
			return err
		}
		if err := st.DeleteUserSubscriptions(ctx, userID); err != nil {
			return err
		}
		if err := st.DeleteUserCards(ctx, userID); err != nil {
			return err
		}
		if err := st.DeleteUserPaymentMethods(ctx, userID); err != nil {
			return err
		}
		if err := st.DeleteUserCategories(ctx, userID); err != nil {
			return err
		}

		refs := newRefMap()
		if err := s.restoreConfig(ctx, st, userID, data[modelUserConfig]); err != nil {
			return err
		}
		summary.Restored[modelUserConfig] = len(data[modelUserConfig])

		n, err := s.restoreCategories(ctx, st, userID, data[modelCategory], refs)
		if err != nil {
			return err
		}
		summary.Restored[modelCategory] = n

		n, err = s.restorePaymentMethods(ctx, st, userID, data[modelPaymentMethod], refs)
		if err != nil {
			return err
		}
		summary.Restored[modelPaymentMethod] = n

		n, err = s.restoreCards(ctx, st, userID, data[modelCard], refs)
		if err != nil {
			return err
		}
		summary.Restored[modelCard] = n

		n, err = s.restoreSubscriptions(ctx, st, userID, data[modelSubscription], refs)
		if err != nil {
			return err
		}
		summary.Restored[modelSubscription] = n

		n, err = s.restoreEntries(ctx, st, userID, data[modelLedgerEntry], refs)
		if err != nil {
			return err
		}
		summary.Restored[modelLedgerEntry] = n
		return nil
	})

	logErr := s.store.AppendImportLog(ctx, &models.ImportLog{
		UserID:  userID,
		Source:  models.ImportSourceBackup,
		Success: err == nil,
		Message: importLogMessage(err, fmt.Sprintf("restored %d entries", summary.Restored[modelLedgerEntry])),
	})
	if err != nil {
		return nil, err
	}
	if logErr != nil {
		return nil, logErr
	}
	s.log.Info("backup restored",
		zap.String("user_id", userID.String()),
		zap.Int("entries", summary.Restored[modelLedgerEntry]))
	return summary, nil
}

func importLogMessage(err error, ok string) string {
	if err != nil {
		return err.Error()
	}
	return ok
}

// restoreConfig updates the singleton settings row in place instead of
// recreating it.
func (s *BackupService) restoreConfig(ctx context.Context, st *store.Store, userID uuid.UUID, recs []backupRecord) error {
	cfg, err := st.GetOrCreateConfig(ctx, userID)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	if cur := recString(recs[0], "default_currency"); cur != "" {
		cfg.DefaultCurrency = cur
	}
	return st.UpdateConfig(ctx, cfg)
}

func (s *BackupService) restoreCategories(ctx context.Context, st *store.Store, userID uuid.UUID, recs []backupRecord, refs *refMap) (int, error) {
	for _, rec := range recs {
		kind := models.EntryKind(recString(rec, "kind"))
		if !kind.Valid() {
			kind = models.KindExpense
		}
		c, err := s.resolveCategory(ctx, st, userID, rec, kind)
		if err != nil {
			return 0, err
		}
		refs.put(modelCategory, recString(rec, "uuid"), c.ID)
	}
	return len(recs), nil
}

// resolveCategory is the two-phase lookup: an existing row with the same
// UUID wins, then one with the same name, then a fresh insert.
func (s *BackupService) resolveCategory(ctx context.Context, st *store.Store, userID uuid.UUID, rec backupRecord, kind models.EntryKind) (*models.Category, error) {
	if uid, err := uuid.Parse(recString(rec, "uuid")); err == nil {
		if c, err := st.GetCategoryByUUID(ctx, userID, uid); err == nil {
			return c, nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	name := recString(rec, "name")
	if c, err := st.GetCategoryByName(ctx, userID, name); err == nil {
		return c, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	c := &models.Category{
		UserID:    userID,
		Name:      name,
		Kind:      kind,
		IsDefault: recBool(rec, "is_default"),
	}
	if uid, err := uuid.Parse(recString(rec, "uuid")); err == nil {
		c.UUID = uid
	}
	if err := st.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *BackupService) restorePaymentMethods(ctx context.Context, st *store.Store, userID uuid.UUID, recs []backupRecord, refs *refMap) (int, error) {
	for _, rec := range recs {
		var m *models.PaymentMethod
		if uid, err := uuid.Parse(recString(rec, "uuid")); err == nil {
			found, err := st.GetPaymentMethodByUUID(ctx, userID, uid)
			if err == nil {
				m = found
			} else if !errors.Is(err, store.ErrNotFound) {
				return 0, err
			}
		}
		if m == nil {
			found, err := st.GetPaymentMethodByName(ctx, userID, recString(rec, "name"))
			if err == nil {
				m = found
			} else if !errors.Is(err, store.ErrNotFound) {
				return 0, err
			}
		}
		if m == nil {
			m = &models.PaymentMethod{
				UserID: userID,
				Name:   recString(rec, "name"),
				Active: recBool(rec, "active"),
			}
			if uid, err := uuid.Parse(recString(rec, "uuid")); err == nil {
				m.UUID = uid
			}
			if err := st.CreatePaymentMethod(ctx, m); err != nil {
				return 0, err
			}
		}
		refs.put(modelPaymentMethod, recString(rec, "uuid"), m.ID)
	}
	return len(recs), nil
}

func (s *BackupService) restoreCards(ctx context.Context, st *store.Store, userID uuid.UUID, recs []backupRecord, refs *refMap) (int, error) {
	for _, rec := range recs {
		c := &models.Card{
			UserID:     userID,
			Name:       recString(rec, "name"),
			Brand:      recString(rec, "brand"),
			LastDigits: recString(rec, "last_digits"),
			ClosingDay: recInt(rec, "closing_day"),
			DueDay:     recInt(rec, "due_day"),
			Active:     recBool(rec, "active"),
		}
		if lim, ok := rec["credit_limit"].(string); ok {
			d, err := decimal.NewFromString(lim)
			if err != nil {
				return 0, fmt.Errorf("card %s: %w", c.Name, err)
			}
			c.Limit = &d
		}
		if uid, err := uuid.Parse(recString(rec, "uuid")); err == nil {
			c.UUID = uid
		}
		if err := st.CreateCard(ctx, c); err != nil {
			return 0, err
		}
		refs.put(modelCard, recString(rec, "uuid"), c.ID)
	}
	return len(recs), nil
}

func (s *BackupService) restoreSubscriptions(ctx context.Context, st *store.Store, userID uuid.UUID, recs []backupRecord, refs *refMap) (int, error) {
	for _, rec := range recs {
		amount, err := recDecimal(rec, "amount")
		if err != nil {
			return 0, fmt.Errorf("subscription %s: %w", recString(rec, "description"), err)
		}
		next, err := recDate(rec, "next_generation")
		if err != nil {
			return 0, fmt.Errorf("subscription %s: %w", recString(rec, "description"), err)
		}
		kind := models.EntryKind(recString(rec, "kind"))
		if !kind.Valid() {
			kind = models.KindExpense
		}
		sub := &models.Subscription{
			UserID:          userID,
			Description:     recString(rec, "description"),
			Amount:          amount,
			Kind:            kind,
			DueDay:          recInt(rec, "due_day"),
			Active:          recBool(rec, "active"),
			NextGeneration:  next,
			CategoryID:      refs.get(modelCategory, recString(rec, "category_uuid")),
			PaymentMethodID: refs.get(modelPaymentMethod, recString(rec, "payment_method_uuid")),
			CardID:          refs.get(modelCard, recString(rec, "card_uuid")),
		}
		if uid, err := uuid.Parse(recString(rec, "uuid")); err == nil {
			sub.UUID = uid
		}
		if err := st.CreateSubscription(ctx, sub); err != nil {
			return 0, err
		}
		refs.put(modelSubscription, recString(rec, "uuid"), sub.ID)
	}
	return len(recs), nil
}

// restoreEntries inserts entries in artifact order. Exports write invoice
// rows first, so invoice references resolve in the same pass; installment
// groups are stamped afterwards because a group's first row references
// itself.
func (s *BackupService) restoreEntries(ctx context.Context, st *store.Store, userID uuid.UUID, recs []backupRecord, refs *refMap) (int, error) {
	type pendingGroup struct {
		entryID   int64
		groupUUID string
	}
	var groups []pendingGroup

	for _, rec := range recs {
		amount, err := recDecimal(rec, "amount")
		if err != nil {
			return 0, fmt.Errorf("entry %s: %w", recString(rec, "description"), err)
		}
		scheduled, err := recDate(rec, "scheduled_date")
		if err != nil {
			return 0, fmt.Errorf("entry %s: %w", recString(rec, "description"), err)
		}
		realizedDate, err := recDatePtr(rec, "realized_date")
		if err != nil {
			return 0, err
		}
		purchaseDate, err := recDatePtr(rec, "purchase_date")
		if err != nil {
			return 0, err
		}
		kind := models.EntryKind(recString(rec, "kind"))
		if !kind.Valid() {
			kind = models.KindExpense
		}

		e := &models.LedgerEntry{
			UserID:           userID,
			Kind:             kind,
			Description:      recString(rec, "description"),
			Amount:           amount,
			ScheduledDate:    scheduled,
			Realized:         recBool(rec, "realized"),
			RealizedDate:     realizedDate,
			PurchaseDate:     purchaseDate,
			CardCategory:     recStringPtr(rec, "card_category"),
			IsInvoice:        recBool(rec, "is_invoice"),
			Installment:      recBool(rec, "installment"),
			InstallmentIndex: recIntPtr(rec, "installment_index"),
			InstallmentCount: recIntPtr(rec, "installment_count"),
			Legacy:           recBool(rec, "is_legacy"),
			OriginYear:       recIntPtr(rec, "origin_year"),
			OriginMonth:      recIntPtr(rec, "origin_month"),
			OriginLabel:      recStringPtr(rec, "origin_label"),
			CategoryID:       refs.get(modelCategory, recString(rec, "category_uuid")),
			PaymentMethodID:  refs.get(modelPaymentMethod, recString(rec, "payment_method_uuid")),
			CardID:           refs.get(modelCard, recString(rec, "card_uuid")),
			SubscriptionID:   refs.get(modelSubscription, recString(rec, "subscription_uuid")),
			InvoiceID:        refs.get(modelLedgerEntry, recString(rec, "invoice_uuid")),
		}
		if uid, err := uuid.Parse(recString(rec, "uuid")); err == nil {
			e.UUID = uid
		}
		if err := st.CreateEntry(ctx, e); err != nil {
			return 0, err
		}
		refs.put(modelLedgerEntry, recString(rec, "uuid"), e.ID)

		if g := recString(rec, "group_uuid"); g != "" {
			groups = append(groups, pendingGroup{entryID: e.ID, groupUUID: g})
		}
	}

	for _, g := range groups {
		id := refs.get(modelLedgerEntry, g.groupUUID)
		if id == nil {
			continue
		}
		if err := st.SetInstallmentGroup(ctx, g.entryID, *id); err != nil {
			return 0, err
		}
	}
	return len(recs), nil
}
