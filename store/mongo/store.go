// Package mongo implements store.Store on MongoDB. Child records (bag
// allocations, batch bags, bundle sacks and fundings) are embedded in
// their parent document; unique multikey indexes enforce exclusivity.
// Tx needs a replica set or sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

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

// Store implements store.Store using MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New wraps a connected client and uses the named database.
func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// Open connects to uri and verifies the deployment answers a ping.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cocoa/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("cocoa/mongo: ping: %w", err)
	}
	return New(client, database), nil
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *mongo.Database { return s.db }

// Migrate creates indexes for all cocoa collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("cocoa/mongo: %w: %s indexes: %w", cocoa.ErrMigrationFailed, col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// Tx runs fn inside a multi-document transaction. Operations join it
// through the session carried on ctx, so nested calls reuse it.
func (s *Store) Tx(ctx context.Context, fn cocoastore.TxFunc) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx, s)
	}
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("cocoa/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx, s)
	})
	return err
}

func (s *Store) col(name string) *mongo.Collection { return s.db.Collection(name) }

// ==================== Farmer Store ====================

func (s *Store) CreateFarmer(ctx context.Context, f *farmer.Farmer) error {
	if f.Operator {
		n, err := s.col(colFarmers).CountDocuments(ctx, bson.M{"operator": true})
		if err != nil {
			return fmt.Errorf("cocoa/mongo: count operators: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("operator farmer: %w", cocoa.ErrAlreadyExists)
		}
	}
	return insert(ctx, s.col(colFarmers), toFarmerModel(f), "farmer")
}

func (s *Store) GetFarmer(ctx context.Context, farmerID id.FarmerID) (*farmer.Farmer, error) {
	var m farmerModel
	if err := s.col(colFarmers).FindOne(ctx, bson.M{"_id": farmerID.String()}).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, cocoa.ErrFarmerNotFound
		}
		return nil, fmt.Errorf("cocoa/mongo: get farmer: %w", err)
	}
	return fromFarmerModel(&m)
}

func (s *Store) GetOperator(ctx context.Context) (*farmer.Farmer, error) {
	var m farmerModel
	opts := options.FindOne().SetSort(byCreated)
	if err := s.col(colFarmers).FindOne(ctx, bson.M{"operator": true}, opts).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, cocoa.ErrFarmerNotFound
		}
		return nil, fmt.Errorf("cocoa/mongo: get operator: %w", err)
	}
	return fromFarmerModel(&m)
}

func (s *Store) ListFarmers(ctx context.Context, opts farmer.ListOpts) ([]*farmer.Farmer, error) {
	filter := bson.M{}
	if len(opts.IDs) > 0 {
		filter["_id"] = bson.M{"$in": id.Strings(opts.IDs)}
	}
	if opts.Country != "" {
		filter["country"] = opts.Country
	}
	if opts.City != "" {
		filter["city"] = opts.City
	}
	if opts.Gender != "" {
		filter["gender"] = opts.Gender
	}
	byName := opts.NameContains != ""
	findOpts := options.Find().SetSort(byCreated)
	if !byName {
		findOpts = paged(findOpts, opts.Limit, opts.Offset)
	}

	var models []farmerModel
	if err := findAll(ctx, s.col(colFarmers), filter, &models, findOpts); err != nil {
		return nil, fmt.Errorf("cocoa/mongo: list farmers: %w", err)
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
	return insert(ctx, s.col(colSacks), toSackModel(sk), "sack")
}

func (s *Store) GetSack(ctx context.Context, sackID id.SackID) (*sack.Sack, error) {
	var m sackModel
	if err := s.col(colSacks).FindOne(ctx, bson.M{"_id": sackID.String()}).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, cocoa.ErrSackNotFound
		}
		return nil, fmt.Errorf("cocoa/mongo: get sack: %w", err)
	}
	return fromSackModel(&m)
}

func (s *Store) ListSacks(ctx context.Context, opts sack.ListOpts) ([]*sack.Sack, error) {
	filter := bson.M{}
	if !opts.FarmerID.IsNil() {
		filter["farmer_id"] = opts.FarmerID.String()
	}
	if len(opts.IDs) > 0 {
		filter["_id"] = bson.M{"$in": id.Strings(opts.IDs)}
	}
	findOpts := paged(options.Find().SetSort(bson.D{{Key: "delivered_at", Value: 1}, {Key: "_id", Value: 1}}), opts.Limit, opts.Offset)

	var models []sackModel
	if err := findAll(ctx, s.col(colSacks), filter, &models, findOpts); err != nil {
		return nil, fmt.Errorf("cocoa/mongo: list sacks: %w", err)
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
	filter := bson.M{}
	var want map[string]bool
	if len(sackIDs) > 0 {
		keys := id.Strings(sackIDs)
		filter["allocations.sack_id"] = bson.M{"$in": keys}
		want = make(map[string]bool, len(keys))
		for _, k := range keys {
			want[k] = true
		}
	}
	var models []bagModel
	if err := findAll(ctx, s.col(colBags), filter, &models); err != nil {
		return nil, fmt.Errorf("cocoa/mongo: allocated weights: %w", err)
	}
	out := make(map[string]decimal.Decimal)
	for _, b := range models {
		for _, a := range b.Allocations {
			if want != nil && !want[a.SackID] {
				continue
			}
			w, err := parseDecimal("weight_kg", a.WeightKg)
			if err != nil {
				return nil, err
			}
			out[a.SackID] = out[a.SackID].Add(w)
		}
	}
	return out, nil
}

// ==================== Bag Store ====================

func (s *Store) CreateBag(ctx context.Context, b *bag.Bag) error {
	return insert(ctx, s.col(colBags), toBagModel(b), "bag")
}

func (s *Store) GetBag(ctx context.Context, bagID id.BagID) (*bag.Bag, error) {
	var m bagModel
	if err := s.col(colBags).FindOne(ctx, bson.M{"_id": bagID.String()}).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, cocoa.ErrBagNotFound
		}
		return nil, fmt.Errorf("cocoa/mongo: get bag: %w", err)
	}
	return fromBagModel(&m)
}

func (s *Store) ListBags(ctx context.Context, opts bag.ListOpts) ([]*bag.Bag, error) {
	filter := bson.M{}
	idFilter := bson.M{}
	if len(opts.IDs) > 0 {
		idFilter["$in"] = id.Strings(opts.IDs)
	}
	if opts.Unbatched {
		batched, err := s.batchedBags(ctx)
		if err != nil {
			return nil, err
		}
		idFilter["$nin"] = batched
	}
	if len(idFilter) > 0 {
		filter["_id"] = idFilter
	}
	if !opts.SackID.IsNil() {
		filter["allocations.sack_id"] = opts.SackID.String()
	}
	findOpts := paged(options.Find().SetSort(byCreated), opts.Limit, opts.Offset)

	var models []bagModel
	if err := findAll(ctx, s.col(colBags), filter, &models, findOpts); err != nil {
		return nil, fmt.Errorf("cocoa/mongo: list bags: %w", err)
	}
	result := make([]*bag.Bag, 0, len(models))
	for i := range models {
		b, err := fromBagModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, nil
}

func (s *Store) batchedBags(ctx context.Context) ([]string, error) {
	var rows []struct {
		BagIDs []string `bson:"bag_ids"`
	}
	findOpts := options.Find().SetProjection(bson.M{"bag_ids": 1})
	if err := findAll(ctx, s.col(colBatches), bson.M{}, &rows, findOpts); err != nil {
		return nil, fmt.Errorf("cocoa/mongo: batched bags: %w", err)
	}
	out := make([]string, 0)
	for _, r := range rows {
		out = append(out, r.BagIDs...)
	}
	return out, nil
}

// ==================== Batch Store ====================

func (s *Store) CreateBatch(ctx context.Context, b *batch.Batch) error {
	bagIDs := id.Strings(b.BagIDs)
	if len(bagIDs) > 0 {
		found, err := s.existingIDs(ctx, colBags, bagIDs)
		if err != nil {
			return err
		}
		for _, want := range bagIDs {
			if !found[want] {
				return fmt.Errorf("%w: %s", cocoa.ErrBagNotFound, want)
			}
		}
		var clash batchModel
		err = s.col(colBatches).FindOne(ctx, bson.M{"bag_ids": bson.M{"$in": bagIDs}}).Decode(&clash)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", cocoa.ErrBagAlreadyBatched, firstShared(bagIDs, clash.BagIDs))
		case !isNoDocuments(err):
			return fmt.Errorf("cocoa/mongo: check batched bags: %w", err)
		}
	}
	if _, err := s.col(colBatches).InsertOne(ctx, toBatchModel(b)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), "bag_ids") {
				return cocoa.ErrBagAlreadyBatched
			}
			return cocoa.ErrAlreadyExists
		}
		return fmt.Errorf("cocoa/mongo: create batch: %w", err)
	}
	return nil
}

func (s *Store) GetBatch(ctx context.Context, batchID id.BatchID) (*batch.Batch, error) {
	var m batchModel
	if err := s.col(colBatches).FindOne(ctx, bson.M{"_id": batchID.String()}).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, cocoa.ErrBatchNotFound
		}
		return nil, fmt.Errorf("cocoa/mongo: get batch: %w", err)
	}
	return fromBatchModel(&m)
}

func (s *Store) ListBatches(ctx context.Context, opts batch.ListOpts) ([]*batch.Batch, error) {
	filter := bson.M{}
	if len(opts.IDs) > 0 {
		filter["_id"] = bson.M{"$in": id.Strings(opts.IDs)}
	}
	if !opts.BagID.IsNil() {
		filter["bag_ids"] = opts.BagID.String()
	}
	findOpts := paged(options.Find().SetSort(byCreated), opts.Limit, opts.Offset)

	var models []batchModel
	if err := findAll(ctx, s.col(colBatches), filter, &models, findOpts); err != nil {
		return nil, fmt.Errorf("cocoa/mongo: list batches: %w", err)
	}
	result := make([]*batch.Batch, 0, len(models))
	for i := range models {
		b, err := fromBatchModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, nil
}

// ==================== Warrant Store ====================

func (s *Store) CreateWarrant(ctx context.Context, r *warrant.Receipt) error {
	covered := id.Strings(r.CoveredIDs)
	if len(covered) > 0 {
		var clash warrantModel
		err := s.col(colWarrants).FindOne(ctx, bson.M{
			"type":        string(r.Type),
			"covered_ids": bson.M{"$in": covered},
		}).Decode(&clash)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", cocoa.ErrAlreadyCovered, firstShared(covered, clash.CoveredIDs))
		case !isNoDocuments(err):
			return fmt.Errorf("cocoa/mongo: check coverage: %w", err)
		}
	}
	if _, err := s.col(colWarrants).InsertOne(ctx, toWarrantModel(r)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), "covered_ids") {
				return cocoa.ErrAlreadyCovered
			}
			return cocoa.ErrAlreadyExists
		}
		return fmt.Errorf("cocoa/mongo: create warrant: %w", err)
	}
	return nil
}

func (s *Store) GetWarrant(ctx context.Context, warrantID id.WarrantID) (*warrant.Receipt, error) {
	var m warrantModel
	if err := s.col(colWarrants).FindOne(ctx, bson.M{"_id": warrantID.String()}).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, cocoa.ErrWarrantNotFound
		}
		return nil, fmt.Errorf("cocoa/mongo: get warrant: %w", err)
	}
	return fromWarrantModel(&m)
}

func (s *Store) ListWarrants(ctx context.Context, opts warrant.ListOpts) ([]*warrant.Receipt, error) {
	filter := bson.M{}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}
	findOpts := paged(options.Find().SetSort(byCreated), opts.Limit, opts.Offset)

	var models []warrantModel
	if err := findAll(ctx, s.col(colWarrants), filter, &models, findOpts); err != nil {
		return nil, fmt.Errorf("cocoa/mongo: list warrants: %w", err)
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
	n, err := s.col(colLenders).CountDocuments(ctx, bson.M{"wallet_key": walletKey(l.WalletAddress)})
	if err != nil {
		return fmt.Errorf("cocoa/mongo: check wallet: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("wallet %s: %w", l.WalletAddress, cocoa.ErrAlreadyExists)
	}
	return insert(ctx, s.col(colLenders), toLenderModel(l), "lender")
}

func (s *Store) GetLender(ctx context.Context, lenderID id.LenderID) (*lender.Lender, error) {
	var m lenderModel
	if err := s.col(colLenders).FindOne(ctx, bson.M{"_id": lenderID.String()}).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, cocoa.ErrLenderNotFound
		}
		return nil, fmt.Errorf("cocoa/mongo: get lender: %w", err)
	}
	return fromLenderModel(&m)
}

func (s *Store) ListLenders(ctx context.Context, opts lender.ListOpts) ([]*lender.Lender, error) {
	filter := bson.M{}
	if opts.WalletAddress != "" {
		filter["wallet_key"] = walletKey(opts.WalletAddress)
	}
	findOpts := paged(options.Find().SetSort(byCreated), opts.Limit, opts.Offset)

	var models []lenderModel
	if err := findAll(ctx, s.col(colLenders), filter, &models, findOpts); err != nil {
		return nil, fmt.Errorf("cocoa/mongo: list lenders: %w", err)
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
	res, err := s.col(colLenders).UpdateOne(ctx,
		bson.M{"_id": lenderID.String()},
		bson.M{"$set": bson.M{"position": toMoneyModel(position), "updated_at": now()}},
	)
	if err != nil {
		return fmt.Errorf("cocoa/mongo: update lender position: %w", err)
	}
	if res.MatchedCount == 0 {
		return cocoa.ErrLenderNotFound
	}
	return nil
}

// ==================== Bundle Store ====================

func (s *Store) CreateBundle(ctx context.Context, b *bundle.Bundle) error {
	sackIDs := id.Strings(b.SackIDs)
	if len(sackIDs) > 0 {
		var clash bundleModel
		err := s.col(colBundles).FindOne(ctx, bson.M{"sack_ids": bson.M{"$in": sackIDs}}).Decode(&clash)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s already bundled", cocoa.ErrSackNotEligible, firstShared(sackIDs, clash.SackIDs))
		case !isNoDocuments(err):
			return fmt.Errorf("cocoa/mongo: check bundled sacks: %w", err)
		}
	}
	if _, err := s.col(colBundles).InsertOne(ctx, toBundleModel(b)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), "sack_ids") {
				return cocoa.ErrSackNotEligible
			}
			return cocoa.ErrAlreadyExists
		}
		return fmt.Errorf("cocoa/mongo: create bundle: %w", err)
	}
	return nil
}

func (s *Store) GetBundle(ctx context.Context, bundleID id.BundleID) (*bundle.Bundle, error) {
	var m bundleModel
	if err := s.col(colBundles).FindOne(ctx, bson.M{"_id": bundleID.String()}).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, cocoa.ErrBundleNotFound
		}
		return nil, fmt.Errorf("cocoa/mongo: get bundle: %w", err)
	}
	return fromBundleModel(&m)
}

func (s *Store) ListBundles(ctx context.Context, opts bundle.ListOpts) ([]*bundle.Bundle, error) {
	filter := bson.M{}
	if len(opts.SackIDs) > 0 {
		filter["sack_ids"] = bson.M{"$in": id.Strings(opts.SackIDs)}
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	findOpts := paged(options.Find().SetSort(byCreated), opts.Limit, opts.Offset)

	var models []bundleModel
	if err := findAll(ctx, s.col(colBundles), filter, &models, findOpts); err != nil {
		return nil, fmt.Errorf("cocoa/mongo: list bundles: %w", err)
	}
	result := make([]*bundle.Bundle, 0, len(models))
	for i := range models {
		b, err := fromBundleModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, nil
}

func (s *Store) AddFunding(ctx context.Context, bundleID id.BundleID, f bundle.Funding) error {
	lenderKey := f.LenderID.String()
	// Increment an existing row for this lender first.
	res, err := s.col(colBundles).UpdateOne(ctx,
		bson.M{"_id": bundleID.String(), "fundings.lender_id": lenderKey},
		bson.M{
			"$inc": bson.M{"fundings.$.amount.amount": f.Amount.Amount},
			"$set": bson.M{"fundings.$.funded_at": f.FundedAt, "updated_at": now()},
		},
	)
	if err != nil {
		return fmt.Errorf("cocoa/mongo: add funding: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	res, err = s.col(colBundles).UpdateOne(ctx,
		bson.M{"_id": bundleID.String()},
		bson.M{
			"$push": bson.M{"fundings": fundingModel{LenderID: lenderKey, Amount: toMoneyModel(f.Amount), FundedAt: f.FundedAt}},
			"$set":  bson.M{"updated_at": now()},
		},
	)
	if err != nil {
		return fmt.Errorf("cocoa/mongo: add funding: %w", err)
	}
	if res.MatchedCount == 0 {
		return cocoa.ErrBundleNotFound
	}
	return nil
}

func (s *Store) UpdateBundleStatus(ctx context.Context, bundleID id.BundleID, status bundle.Status) error {
	res, err := s.col(colBundles).UpdateOne(ctx,
		bson.M{"_id": bundleID.String()},
		bson.M{"$set": bson.M{"status": string(status), "updated_at": now()}},
	)
	if err != nil {
		return fmt.Errorf("cocoa/mongo: update bundle status: %w", err)
	}
	if res.MatchedCount == 0 {
		return cocoa.ErrBundleNotFound
	}
	return nil
}

// ==================== Token Store ====================

func (s *Store) AppendTokens(ctx context.Context, entries ...*token.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	last, err := s.reserveSeq(ctx, colTokens, int64(len(entries)))
	if err != nil {
		return err
	}
	first := last - int64(len(entries)) + 1
	docs := make([]any, len(entries))
	for i, e := range entries {
		docs[i] = toTokenModel(e, first+int64(i))
	}
	if _, err := s.col(colTokens).InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return cocoa.ErrAlreadyExists
		}
		return fmt.Errorf("cocoa/mongo: append tokens: %w", err)
	}
	return nil
}

// reserveSeq advances the named counter by n and returns its new value.
func (s *Store) reserveSeq(ctx context.Context, name string, n int64) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.col(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": n}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("cocoa/mongo: reserve %s sequence: %w", name, err)
	}
	return counter.Seq, nil
}

func (s *Store) ListTokens(ctx context.Context, opts token.ListOpts) ([]*token.Entry, error) {
	filter := bson.M{}
	if !opts.FarmerID.IsNil() {
		filter["farmer_id"] = opts.FarmerID.String()
	}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}
	findOpts := paged(options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}), opts.Limit, opts.Offset)

	var models []tokenModel
	if err := findAll(ctx, s.col(colTokens), filter, &models, findOpts); err != nil {
		return nil, fmt.Errorf("cocoa/mongo: list tokens: %w", err)
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
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "farmer_id", Value: farmerID.String()}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "kind", Value: "$kind"}, {Key: "currency", Value: "$currency"}}},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
		}}},
	}
	cursor, err := s.col(colTokens).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("cocoa/mongo: balances: %w", err)
	}
	var rows []struct {
		Key struct {
			Kind     string `bson:"kind"`
			Currency string `bson:"currency"`
		} `bson:"_id"`
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("cocoa/mongo: balances: %w", err)
	}
	out := make(map[token.Kind]types.Money, len(rows))
	for _, r := range rows {
		k := token.Kind(r.Key.Kind)
		m := types.New(r.Total, r.Key.Currency)
		if cur, ok := out[k]; ok {
			m = cur.Add(m)
		}
		out[k] = m
	}
	return out, nil
}

// ==================== Tip Store ====================

func (s *Store) CreateTip(ctx context.Context, t *tip.Tip) error {
	return insert(ctx, s.col(colTips), toTipModel(t), "tip")
}

func (s *Store) ListTips(ctx context.Context, opts tip.ListOpts) ([]*tip.Tip, error) {
	filter := bson.M{}
	if !opts.FarmerID.IsNil() {
		filter["farmer_id"] = opts.FarmerID.String()
	}
	findOpts := paged(options.Find().SetSort(byCreated), opts.Limit, opts.Offset)

	var models []tipModel
	if err := findAll(ctx, s.col(colTips), filter, &models, findOpts); err != nil {
		return nil, fmt.Errorf("cocoa/mongo: list tips: %w", err)
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
	return insert(ctx, s.col(colInvoices), toInvoiceModel(inv), "invoice")
}

func (s *Store) GetInvoice(ctx context.Context, invoiceID id.InvoiceID) (*invoice.Invoice, error) {
	var m invoiceModel
	if err := s.col(colInvoices).FindOne(ctx, bson.M{"_id": invoiceID.String()}).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, cocoa.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("cocoa/mongo: get invoice: %w", err)
	}
	return fromInvoiceModel(&m)
}

func (s *Store) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	findOpts := paged(options.Find().SetSort(byCreated), opts.Limit, opts.Offset)

	var models []invoiceModel
	if err := findAll(ctx, s.col(colInvoices), filter, &models, findOpts); err != nil {
		return nil, fmt.Errorf("cocoa/mongo: list invoices: %w", err)
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
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now()
	}
	res, err := s.col(colInvoices).ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("cocoa/mongo: update invoice: %w", err)
	}
	if res.MatchedCount == 0 {
		return cocoa.ErrInvoiceNotFound
	}
	return nil
}

// ==================== helpers ====================

var byCreated = bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}

func now() time.Time {
	return time.Now().UTC()
}

func walletKey(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func insert(ctx context.Context, col *mongo.Collection, doc any, what string) error {
	if _, err := col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return cocoa.ErrAlreadyExists
		}
		return fmt.Errorf("cocoa/mongo: create %s: %w", what, err)
	}
	return nil
}

func findAll(ctx context.Context, col *mongo.Collection, filter any, out any, opts ...options.Lister[options.FindOptions]) error {
	cursor, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return err
	}
	return cursor.All(ctx, out)
}

func (s *Store) existingIDs(ctx context.Context, col string, ids []string) (map[string]bool, error) {
	var rows []struct {
		ID string `bson:"_id"`
	}
	findOpts := options.Find().SetProjection(bson.M{"_id": 1})
	if err := findAll(ctx, s.col(col), bson.M{"_id": bson.M{"$in": ids}}, &rows, findOpts); err != nil {
		return nil, fmt.Errorf("cocoa/mongo: lookup %s: %w", col, err)
	}
	found := make(map[string]bool, len(rows))
	for _, r := range rows {
		found[r.ID] = true
	}
	return found, nil
}

func firstShared(want, have []string) string {
	set := make(map[string]bool, len(have))
	for _, h := range have {
		set[h] = true
	}
	for _, w := range want {
		if set[w] {
			return w
		}
	}
	return ""
}

func paged(o *options.FindOptionsBuilder, limit, offset int) *options.FindOptionsBuilder {
	if limit > 0 {
		o = o.SetLimit(int64(limit))
	}
	if offset > 0 {
		o = o.SetSkip(int64(offset))
	}
	return o
}

func page[T any](items []T, limit, offset int) []T {
	start := min(offset, len(items))
	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return items[start:end]
}

func migrationIndexes() map[string][]mongo.IndexModel {
	unique := func() *options.IndexOptionsBuilder { return options.Index().SetUnique(true) }
	// Empty arrays index as undefined; keep them out of unique multikey indexes.
	uniqueMembers := func(field string) *options.IndexOptionsBuilder {
		return unique().SetPartialFilterExpression(bson.M{field: bson.M{"$type": "string"}})
	}
	return map[string][]mongo.IndexModel{
		colFarmers: {
			{Keys: bson.D{{Key: "country", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
			{
				Keys:    bson.D{{Key: "operator", Value: 1}},
				Options: unique().SetPartialFilterExpression(bson.M{"operator": true}),
			},
		},
		colSacks: {
			{Keys: bson.D{{Key: "farmer_id", Value: 1}}},
			{Keys: bson.D{{Key: "delivered_at", Value: 1}}},
		},
		colBags: {
			{Keys: bson.D{{Key: "allocations.sack_id", Value: 1}}},
		},
		colBatches: {
			{Keys: bson.D{{Key: "bag_ids", Value: 1}}, Options: uniqueMembers("bag_ids")},
		},
		colWarrants: {
			{Keys: bson.D{{Key: "type", Value: 1}, {Key: "covered_ids", Value: 1}}, Options: uniqueMembers("covered_ids")},
		},
		colLenders: {
			{Keys: bson.D{{Key: "wallet_key", Value: 1}}, Options: unique()},
		},
		colBundles: {
			{Keys: bson.D{{Key: "sack_ids", Value: 1}}, Options: uniqueMembers("sack_ids")},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		colTokens: {
			{Keys: bson.D{{Key: "farmer_id", Value: 1}, {Key: "seq", Value: 1}}},
			{Keys: bson.D{{Key: "seq", Value: 1}}, Options: unique()},
		},
		colTips: {
			{Keys: bson.D{{Key: "farmer_id", Value: 1}}},
		},
		colInvoices: {
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
	}
}
