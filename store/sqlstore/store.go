// Package sqlstore implements store.Store on gorm. The postgres and sqlite
// packages open a dialect and hand the connection to New; the schema and
// queries are shared.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/xraph/cocoa"
	"github.com/xraph/cocoa/bag"
	"github.com/xraph/cocoa/batch"
	"github.com/xraph/cocoa/bundle"
	"github.com/xraph/cocoa/farmer"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/invoice"
	"github.com/xraph/cocoa/lender"
	"github.com/xraph/cocoa/sack"
	cocoastore "github.com/xraph/cocoa/store"
	"github.com/xraph/cocoa/tip"
	"github.com/xraph/cocoa/token"
	"github.com/xraph/cocoa/types"
	"github.com/xraph/cocoa/warrant"
)

// compile-time interface check
var _ cocoastore.Store = (*Store)(nil)

// Store implements store.Store over a gorm connection.
type Store struct {
	db   *gorm.DB
	inTx bool
}

// New wraps an open gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying gorm handle for direct access.
func (s *Store) DB() *gorm.DB { return s.db }

// Migrate creates or updates every table and index.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(Models...); err != nil {
		return fmt.Errorf("cocoa/sql: %w: %w", cocoa.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.inTx {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Tx runs fn inside one database transaction. Nested calls reuse it.
func (s *Store) Tx(ctx context.Context, fn cocoastore.TxFunc) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &Store{db: tx, inTx: true})
	})
}

// within runs a multi-statement write atomically, joining the open
// transaction if there is one.
func (s *Store) within(ctx context.Context, fn func(db *gorm.DB) error) error {
	if s.inTx {
		return fn(s.db.WithContext(ctx))
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// ==================== Farmer Store ====================

func (s *Store) CreateFarmer(ctx context.Context, f *farmer.Farmer) error {
	return s.within(ctx, func(db *gorm.DB) error {
		if f.Operator {
			taken, err := exists(db, &farmerModel{}, "operator = ?", true)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("operator farmer: %w", cocoa.ErrAlreadyExists)
			}
		}
		return translate(db.Create(toFarmerModel(f)).Error)
	})
}

func (s *Store) GetFarmer(ctx context.Context, farmerID id.FarmerID) (*farmer.Farmer, error) {
	m := new(farmerModel)
	err := s.db.WithContext(ctx).Where("id = ?", farmerID.String()).Take(m).Error
	if err != nil {
		if isNotFound(err) {
			return nil, cocoa.ErrFarmerNotFound
		}
		return nil, fmt.Errorf("cocoa/sql: get farmer: %w", err)
	}
	return fromFarmerModel(m)
}

func (s *Store) GetOperator(ctx context.Context) (*farmer.Farmer, error) {
	m := new(farmerModel)
	err := s.db.WithContext(ctx).Where("operator = ?", true).Order("created_at, id").Take(m).Error
	if err != nil {
		if isNotFound(err) {
			return nil, cocoa.ErrFarmerNotFound
		}
		return nil, fmt.Errorf("cocoa/sql: get operator: %w", err)
	}
	return fromFarmerModel(m)
}

func (s *Store) ListFarmers(ctx context.Context, opts farmer.ListOpts) ([]*farmer.Farmer, error) {
	q := s.db.WithContext(ctx).Model(&farmerModel{})
	if len(opts.IDs) > 0 {
		q = q.Where("id IN ?", id.Strings(opts.IDs))
	}
	if opts.Country != "" {
		q = q.Where("country = ?", opts.Country)
	}
	if opts.City != "" {
		q = q.Where("city = ?", opts.City)
	}
	if opts.Gender != "" {
		q = q.Where("gender = ?", opts.Gender)
	}
	q = q.Order("created_at, id")
	// Name matching runs on the joined display name, so it pages in Go.
	byName := opts.NameContains != ""
	if !byName {
		q = paged(q, opts.Limit, opts.Offset)
	}

	var models []farmerModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("cocoa/sql: list farmers: %w", err)
	}
	result := make([]*farmer.Farmer, 0, len(models))
	for i := range models {
		f, err := fromFarmerModel(&models[i])
		if err != nil {
			return nil, err
		}
		if byName && !opts.Matches(f) {
			continue
		}
		result = append(result, f)
	}
	if byName {
		result = page(result, opts.Limit, opts.Offset)
	}
	return result, nil
}

// ==================== Sack Store ====================

func (s *Store) CreateSack(ctx context.Context, sk *sack.Sack) error {
	return translate(s.db.WithContext(ctx).Create(toSackModel(sk)).Error)
}

func (s *Store) GetSack(ctx context.Context, sackID id.SackID) (*sack.Sack, error) {
	m := new(sackModel)
	err := s.db.WithContext(ctx).Where("id = ?", sackID.String()).Take(m).Error
	if err != nil {
		if isNotFound(err) {
			return nil, cocoa.ErrSackNotFound
		}
		return nil, fmt.Errorf("cocoa/sql: get sack: %w", err)
	}
	return fromSackModel(m)
}

func (s *Store) ListSacks(ctx context.Context, opts sack.ListOpts) ([]*sack.Sack, error) {
	q := s.db.WithContext(ctx).Model(&sackModel{})
	if !opts.FarmerID.IsNil() {
		q = q.Where("farmer_id = ?", opts.FarmerID.String())
	}
	if len(opts.IDs) > 0 {
		q = q.Where("id IN ?", id.Strings(opts.IDs))
	}
	q = paged(q.Order("delivered_at, id"), opts.Limit, opts.Offset)

	var models []sackModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("cocoa/sql: list sacks: %w", err)
	}
	result := make([]*sack.Sack, 0, len(models))
	for i := range models {
		sk, err := fromSackModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, sk)
	}
	return result, nil
}

func (s *Store) AllocatedWeights(ctx context.Context, sackIDs []id.SackID) (map[string]decimal.Decimal, error) {
	q := s.db.WithContext(ctx).Model(&bagAllocationModel{})
	if len(sackIDs) > 0 {
		q = q.Where("sack_id IN ?", id.Strings(sackIDs))
	}
	var rows []bagAllocationModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("cocoa/sql: allocated weights: %w", err)
	}
	out := make(map[string]decimal.Decimal)
	for _, r := range rows {
		w, err := parseDecimal("weight_kg", r.WeightKg)
		if err != nil {
			return nil, err
		}
		out[r.SackID] = out[r.SackID].Add(w)
	}
	return out, nil
}

// ==================== Bag Store ====================

func (s *Store) CreateBag(ctx context.Context, b *bag.Bag) error {
	m, allocs := toBagModels(b)
	return s.within(ctx, func(db *gorm.DB) error {
		if err := db.Create(m).Error; err != nil {
			return translate(err)
		}
		if len(allocs) == 0 {
			return nil
		}
		return translate(db.Create(&allocs).Error)
	})
}

func (s *Store) GetBag(ctx context.Context, bagID id.BagID) (*bag.Bag, error) {
	db := s.db.WithContext(ctx)
	m := new(bagModel)
	if err := db.Where("id = ?", bagID.String()).Take(m).Error; err != nil {
		if isNotFound(err) {
			return nil, cocoa.ErrBagNotFound
		}
		return nil, fmt.Errorf("cocoa/sql: get bag: %w", err)
	}
	bags, err := loadBags(db, []bagModel{*m})
	if err != nil {
		return nil, err
	}
	return bags[0], nil
}

func (s *Store) ListBags(ctx context.Context, opts bag.ListOpts) ([]*bag.Bag, error) {
	db := s.db.WithContext(ctx)
	q := db.Model(&bagModel{})
	if len(opts.IDs) > 0 {
		q = q.Where("id IN ?", id.Strings(opts.IDs))
	}
	if !opts.SackID.IsNil() {
		q = q.Where("id IN (?)", db.Model(&bagAllocationModel{}).Select("bag_id").Where("sack_id = ?", opts.SackID.String()))
	}
	if opts.Unbatched {
		q = q.Where("id NOT IN (?)", db.Model(&batchBagModel{}).Select("bag_id"))
	}
	q = paged(q.Order("created_at, id"), opts.Limit, opts.Offset)

	var models []bagModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("cocoa/sql: list bags: %w", err)
	}
	return loadBags(db, models)
}

func loadBags(db *gorm.DB, models []bagModel) ([]*bag.Bag, error) {
	result := make([]*bag.Bag, 0, len(models))
	if len(models) == 0 {
		return result, nil
	}
	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	var allocs []bagAllocationModel
	if err := db.Where("bag_id IN ?", ids).Order("bag_id, position").Find(&allocs).Error; err != nil {
		return nil, fmt.Errorf("cocoa/sql: load bag allocations: %w", err)
	}
	byBag := make(map[string][]bagAllocationModel, len(models))
	for _, a := range allocs {
		byBag[a.BagID] = append(byBag[a.BagID], a)
	}
	for i := range models {
		b, err := fromBagModel(&models[i], byBag[models[i].ID])
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, nil
}

// ==================== Batch Store ====================

func (s *Store) CreateBatch(ctx context.Context, b *batch.Batch) error {
	m, links := toBatchModels(b)
	bagIDs := id.Strings(b.BagIDs)
	return s.within(ctx, func(db *gorm.DB) error {
		if len(bagIDs) > 0 {
			var found []string
			if err := db.Model(&bagModel{}).Where("id IN ?", bagIDs).Pluck("id", &found).Error; err != nil {
				return err
			}
			if missing := firstMissing(bagIDs, found); missing != "" {
				return fmt.Errorf("%w: %s", cocoa.ErrBagNotFound, missing)
			}
			var batched []string
			if err := db.Model(&batchBagModel{}).Where("bag_id IN ?", bagIDs).Pluck("bag_id", &batched).Error; err != nil {
				return err
			}
			if len(batched) > 0 {
				return fmt.Errorf("%w: %s", cocoa.ErrBagAlreadyBatched, batched[0])
			}
		}
		if err := db.Create(m).Error; err != nil {
			return translate(err)
		}
		if len(links) == 0 {
			return nil
		}
		return translate(db.Create(&links).Error)
	})
}

func (s *Store) GetBatch(ctx context.Context, batchID id.BatchID) (*batch.Batch, error) {
	db := s.db.WithContext(ctx)
	m := new(batchModel)
	if err := db.Where("id = ?", batchID.String()).Take(m).Error; err != nil {
		if isNotFound(err) {
			return nil, cocoa.ErrBatchNotFound
		}
		return nil, fmt.Errorf("cocoa/sql: get batch: %w", err)
	}
	batches, err := loadBatches(db, []batchModel{*m})
	if err != nil {
		return nil, err
	}
	return batches[0], nil
}

func (s *Store) ListBatches(ctx context.Context, opts batch.ListOpts) ([]*batch.Batch, error) {
	db := s.db.WithContext(ctx)
	q := db.Model(&batchModel{})
	if len(opts.IDs) > 0 {
		q = q.Where("id IN ?", id.Strings(opts.IDs))
	}
	if !opts.BagID.IsNil() {
		q = q.Where("id IN (?)", db.Model(&batchBagModel{}).Select("batch_id").Where("bag_id = ?", opts.BagID.String()))
	}
	q = paged(q.Order("created_at, id"), opts.Limit, opts.Offset)

	var models []batchModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("cocoa/sql: list batches: %w", err)
	}
	return loadBatches(db, models)
}

func loadBatches(db *gorm.DB, models []batchModel) ([]*batch.Batch, error) {
	result := make([]*batch.Batch, 0, len(models))
	if len(models) == 0 {
		return result, nil
	}
	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	var links []batchBagModel
	if err := db.Where("batch_id IN ?", ids).Order("batch_id, position").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("cocoa/sql: load batch bags: %w", err)
	}
	byBatch := make(map[string][]batchBagModel, len(models))
	for _, l := range links {
		byBatch[l.BatchID] = append(byBatch[l.BatchID], l)
	}
	for i := range models {
		b, err := fromBatchModel(&models[i], byBatch[models[i].ID])
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, nil
}

// ==================== Warrant Store ====================

func (s *Store) CreateWarrant(ctx context.Context, r *warrant.Receipt) error {
	m, coverage := toWarrantModels(r)
	covered := id.Strings(r.CoveredIDs)
	return s.within(ctx, func(db *gorm.DB) error {
		if len(covered) > 0 {
			var taken []string
			err := db.Model(&warrantCoverageModel{}).
				Where("type = ? AND covered_id IN ?", string(r.Type), covered).
				Pluck("covered_id", &taken).Error
			if err != nil {
				return err
			}
			if len(taken) > 0 {
				return fmt.Errorf("%w: %s", cocoa.ErrAlreadyCovered, taken[0])
			}
		}
		if err := db.Create(m).Error; err != nil {
			return translate(err)
		}
		if len(coverage) == 0 {
			return nil
		}
		if err := db.Create(&coverage).Error; err != nil {
			if isDuplicate(err) {
				return cocoa.ErrAlreadyCovered
			}
			return err
		}
		return nil
	})
}

func (s *Store) GetWarrant(ctx context.Context, warrantID id.WarrantID) (*warrant.Receipt, error) {
	m := new(warrantModel)
	err := s.db.WithContext(ctx).Where("id = ?", warrantID.String()).Take(m).Error
	if err != nil {
		if isNotFound(err) {
			return nil, cocoa.ErrWarrantNotFound
		}
		return nil, fmt.Errorf("cocoa/sql: get warrant: %w", err)
	}
	return fromWarrantModel(m)
}

func (s *Store) ListWarrants(ctx context.Context, opts warrant.ListOpts) ([]*warrant.Receipt, error) {
	q := s.db.WithContext(ctx).Model(&warrantModel{})
	if opts.Type != "" {
		q = q.Where("type = ?", string(opts.Type))
	}
	q = paged(q.Order("created_at, id"), opts.Limit, opts.Offset)

	var models []warrantModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("cocoa/sql: list warrants: %w", err)
	}
	result := make([]*warrant.Receipt, 0, len(models))
	for i := range models {
		r, err := fromWarrantModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, nil
}

// ==================== Lender Store ====================

func (s *Store) CreateLender(ctx context.Context, l *lender.Lender) error {
	return s.within(ctx, func(db *gorm.DB) error {
		taken, err := exists(db, &lenderModel{}, "wallet_key = ?", walletKey(l.WalletAddress))
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("wallet %s: %w", l.WalletAddress, cocoa.ErrAlreadyExists)
		}
		return translate(db.Create(toLenderModel(l)).Error)
	})
}

func (s *Store) GetLender(ctx context.Context, lenderID id.LenderID) (*lender.Lender, error) {
	m := new(lenderModel)
	err := s.db.WithContext(ctx).Where("id = ?", lenderID.String()).Take(m).Error
	if err != nil {
		if isNotFound(err) {
			return nil, cocoa.ErrLenderNotFound
		}
		return nil, fmt.Errorf("cocoa/sql: get lender: %w", err)
	}
	return fromLenderModel(m)
}

func (s *Store) ListLenders(ctx context.Context, opts lender.ListOpts) ([]*lender.Lender, error) {
	q := s.db.WithContext(ctx).Model(&lenderModel{})
	if opts.WalletAddress != "" {
		q = q.Where("wallet_key = ?", walletKey(opts.WalletAddress))
	}
	q = paged(q.Order("created_at, id"), opts.Limit, opts.Offset)

	var models []lenderModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("cocoa/sql: list lenders: %w", err)
	}
	result := make([]*lender.Lender, 0, len(models))
	for i := range models {
		l, err := fromLenderModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, nil
}

func (s *Store) UpdateLenderPosition(ctx context.Context, lenderID id.LenderID, position types.Money) error {
	res := s.db.WithContext(ctx).Model(&lenderModel{}).
		Where("id = ?", lenderID.String()).
		Updates(map[string]any{
			"position_amount":   position.Amount,
			"position_currency": position.Currency,
			"updated_at":        now(),
		})
	if res.Error != nil {
		return fmt.Errorf("cocoa/sql: update lender position: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return cocoa.ErrLenderNotFound
	}
	return nil
}

// ==================== Bundle Store ====================

func (s *Store) CreateBundle(ctx context.Context, b *bundle.Bundle) error {
	m, sacks := toBundleModels(b)
	sackIDs := id.Strings(b.SackIDs)
	return s.within(ctx, func(db *gorm.DB) error {
		if len(sackIDs) > 0 {
			var taken []string
			if err := db.Model(&bundleSackModel{}).Where("sack_id IN ?", sackIDs).Pluck("sack_id", &taken).Error; err != nil {
				return err
			}
			if len(taken) > 0 {
				return fmt.Errorf("%w: %s already bundled", cocoa.ErrSackNotEligible, taken[0])
			}
		}
		if err := db.Create(m).Error; err != nil {
			return translate(err)
		}
		if len(sacks) == 0 {
			return nil
		}
		return translate(db.Create(&sacks).Error)
	})
}

func (s *Store) GetBundle(ctx context.Context, bundleID id.BundleID) (*bundle.Bundle, error) {
	db := s.db.WithContext(ctx)
	m := new(bundleModel)
	if err := db.Where("id = ?", bundleID.String()).Take(m).Error; err != nil {
		if isNotFound(err) {
			return nil, cocoa.ErrBundleNotFound
		}
		return nil, fmt.Errorf("cocoa/sql: get bundle: %w", err)
	}
	bundles, err := loadBundles(db, []bundleModel{*m})
	if err != nil {
		return nil, err
	}
	return bundles[0], nil
}

func (s *Store) ListBundles(ctx context.Context, opts bundle.ListOpts) ([]*bundle.Bundle, error) {
	db := s.db.WithContext(ctx)
	q := db.Model(&bundleModel{})
	if len(opts.SackIDs) > 0 {
		q = q.Where("id IN (?)", db.Model(&bundleSackModel{}).Select("bundle_id").Where("sack_id IN ?", id.Strings(opts.SackIDs)))
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	q = paged(q.Order("created_at, id"), opts.Limit, opts.Offset)

	var models []bundleModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("cocoa/sql: list bundles: %w", err)
	}
	return loadBundles(db, models)
}

func loadBundles(db *gorm.DB, models []bundleModel) ([]*bundle.Bundle, error) {
	result := make([]*bundle.Bundle, 0, len(models))
	if len(models) == 0 {
		return result, nil
	}
	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	var sacks []bundleSackModel
	if err := db.Where("bundle_id IN ?", ids).Order("bundle_id, position").Find(&sacks).Error; err != nil {
		return nil, fmt.Errorf("cocoa/sql: load bundle sacks: %w", err)
	}
	var fundings []bundleFundingModel
	if err := db.Where("bundle_id IN ?", ids).Order("bundle_id, position").Find(&fundings).Error; err != nil {
		return nil, fmt.Errorf("cocoa/sql: load bundle fundings: %w", err)
	}
	sacksOf := make(map[string][]bundleSackModel, len(models))
	for _, sk := range sacks {
		sacksOf[sk.BundleID] = append(sacksOf[sk.BundleID], sk)
	}
	fundingsOf := make(map[string][]bundleFundingModel, len(models))
	for _, f := range fundings {
		fundingsOf[f.BundleID] = append(fundingsOf[f.BundleID], f)
	}
	for i := range models {
		b, err := fromBundleModel(&models[i], sacksOf[models[i].ID], fundingsOf[models[i].ID])
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, nil
}

func (s *Store) AddFunding(ctx context.Context, bundleID id.BundleID, f bundle.Funding) error {
	return s.within(ctx, func(db *gorm.DB) error {
		found, err := exists(db, &bundleModel{}, "id = ?", bundleID.String())
		if err != nil {
			return err
		}
		if !found {
			return cocoa.ErrBundleNotFound
		}

		existing := new(bundleFundingModel)
		err = db.Where("bundle_id = ? AND lender_id = ?", bundleID.String(), f.LenderID.String()).Take(existing).Error
		switch {
		case err == nil:
			total := existing.Amount.money().Add(f.Amount)
			err = db.Model(&bundleFundingModel{}).
				Where("bundle_id = ? AND lender_id = ?", bundleID.String(), f.LenderID.String()).
				Updates(map[string]any{"amount": total.Amount, "funded_at": f.FundedAt}).Error
		case isNotFound(err):
			var n int64
			if err := db.Model(&bundleFundingModel{}).Where("bundle_id = ?", bundleID.String()).Count(&n).Error; err != nil {
				return err
			}
			err = db.Create(&bundleFundingModel{
				BundleID: bundleID.String(),
				LenderID: f.LenderID.String(),
				Position: int(n),
				Amount:   toMoneyColumns(f.Amount),
				FundedAt: f.FundedAt,
			}).Error
		}
		if err != nil {
			return fmt.Errorf("cocoa/sql: add funding: %w", err)
		}
		return db.Model(&bundleModel{}).Where("id = ?", bundleID.String()).Update("updated_at", now()).Error
	})
}

func (s *Store) UpdateBundleStatus(ctx context.Context, bundleID id.BundleID, status bundle.Status) error {
	res := s.db.WithContext(ctx).Model(&bundleModel{}).
		Where("id = ?", bundleID.String()).
		Updates(map[string]any{"status": string(status), "updated_at": now()})
	if res.Error != nil {
		return fmt.Errorf("cocoa/sql: update bundle status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return cocoa.ErrBundleNotFound
	}
	return nil
}

// ==================== Token Store ====================

func (s *Store) AppendTokens(ctx context.Context, entries ...*token.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	models := make([]*tokenModel, len(entries))
	for i, e := range entries {
		models[i] = toTokenModel(e)
	}
	return translate(s.db.WithContext(ctx).Create(&models).Error)
}

func (s *Store) ListTokens(ctx context.Context, opts token.ListOpts) ([]*token.Entry, error) {
	q := s.db.WithContext(ctx).Model(&tokenModel{})
	if !opts.FarmerID.IsNil() {
		q = q.Where("farmer_id = ?", opts.FarmerID.String())
	}
	if opts.Kind != "" {
		q = q.Where("kind = ?", string(opts.Kind))
	}
	q = paged(q.Order("seq"), opts.Limit, opts.Offset)

	var models []tokenModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("cocoa/sql: list tokens: %w", err)
	}
	result := make([]*token.Entry, 0, len(models))
	for i := range models {
		e, err := fromTokenModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}

func (s *Store) Balances(ctx context.Context, farmerID id.FarmerID) (map[token.Kind]types.Money, error) {
	var rows []struct {
		Kind     string
		Currency string
		Total    int64
	}
	err := s.db.WithContext(ctx).Model(&tokenModel{}).
		Select("kind, currency, COALESCE(SUM(amount), 0) AS total").
		Where("farmer_id = ?", farmerID.String()).
		Group("kind, currency").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("cocoa/sql: balances: %w", err)
	}
	out := make(map[token.Kind]types.Money, len(rows))
	for _, r := range rows {
		k := token.Kind(r.Kind)
		m := types.New(r.Total, r.Currency)
		if cur, ok := out[k]; ok {
			m = cur.Add(m)
		}
		out[k] = m
	}
	return out, nil
}

// ==================== Tip Store ====================

func (s *Store) CreateTip(ctx context.Context, t *tip.Tip) error {
	return translate(s.db.WithContext(ctx).Create(toTipModel(t)).Error)
}

func (s *Store) ListTips(ctx context.Context, opts tip.ListOpts) ([]*tip.Tip, error) {
	q := s.db.WithContext(ctx).Model(&tipModel{})
	if !opts.FarmerID.IsNil() {
		q = q.Where("farmer_id = ?", opts.FarmerID.String())
	}
	q = paged(q.Order("created_at, id"), opts.Limit, opts.Offset)

	var models []tipModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("cocoa/sql: list tips: %w", err)
	}
	result := make([]*tip.Tip, 0, len(models))
	for i := range models {
		t, err := fromTipModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, nil
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	return translate(s.db.WithContext(ctx).Create(toInvoiceModel(inv)).Error)
}

func (s *Store) GetInvoice(ctx context.Context, invoiceID id.InvoiceID) (*invoice.Invoice, error) {
	m := new(invoiceModel)
	err := s.db.WithContext(ctx).Where("id = ?", invoiceID.String()).Take(m).Error
	if err != nil {
		if isNotFound(err) {
			return nil, cocoa.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("cocoa/sql: get invoice: %w", err)
	}
	return fromInvoiceModel(m)
}

func (s *Store) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	q := s.db.WithContext(ctx).Model(&invoiceModel{})
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	q = paged(q.Order("created_at, id"), opts.Limit, opts.Offset)

	var models []invoiceModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("cocoa/sql: list invoices: %w", err)
	}
	result := make([]*invoice.Invoice, 0, len(models))
	for i := range models {
		inv, err := fromInvoiceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	return result, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	m := toInvoiceModel(inv)
	updated := m.UpdatedAt
	if updated.IsZero() {
		updated = now()
	}
	res := s.db.WithContext(ctx).Model(&invoiceModel{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{
			"paid_amount":        m.AmountPaid.Amount,
			"paid_currency":      m.AmountPaid.Currency,
			"remaining_amount":   m.AmountRemaining.Amount,
			"remaining_currency": m.AmountRemaining.Currency,
			"percent_to_farmers": m.PercentToFarmers,
			"covered_batches":    m.CoveredBatches,
			"settled_batches":    m.SettledBatches,
			"status":             m.Status,
			"updated_at":         updated,
		})
	if res.Error != nil {
		return fmt.Errorf("cocoa/sql: update invoice: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return cocoa.ErrInvoiceNotFound
	}
	return nil
}

// ==================== helpers ====================

func now() time.Time {
	return time.Now().UTC()
}

func walletKey(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// isDuplicate recognises unique violations whether or not the dialect
// was opened with TranslateError.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if isDuplicate(err) {
		return cocoa.ErrAlreadyExists
	}
	return err
}

func exists(db *gorm.DB, model any, query string, args ...any) (bool, error) {
	var n int64
	if err := db.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func firstMissing(want, found []string) string {
	have := make(map[string]bool, len(found))
	for _, f := range found {
		have[f] = true
	}
	for _, w := range want {
		if !have[w] {
			return w
		}
	}
	return ""
}

func paged(q *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}

func page[T any](items []T, limit, offset int) []T {
	start := min(offset, len(items))
	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return items[start:end]
}
