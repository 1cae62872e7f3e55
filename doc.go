// Package cocoa provides a supply-chain ledger for cocoa, from farmer
// delivery through physical aggregation, financing and payment settlement.
//
// Cocoa is designed as a library, not a service. Import it directly into
// your Go application, or run cmd/cocoad for the HTTP API. It provides:
//
//   - Bin-packing of sacks into 63 kg bags and of bags into 60 MT batches
//   - Contribution percentages by weight and value at every stage
//   - Warrant receipts over bags (pre-processing) and batches (post-processing)
//   - Financing bundles funded by lenders from their positions
//   - Invoice settlement that burns debt, repays lenders with interest and
//     shares the remainder between farmers and the operator
//
// # Quick Start
//
// Create a ledger with your preferred store:
//
//	import (
//	    "github.com/xraph/cocoa"
//	    "github.com/xraph/cocoa/store/memory"
//	)
//
//	l := cocoa.New(memory.New())
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Core Concepts
//
// Delivering a sack records it and mints a debt token for the value paid:
//
//	s, err := l.DeliverSack(ctx, cocoa.DeliverSackInput{
//	    FarmerID:  farmerID,
//	    WeightKg:  decimal.NewFromInt(70),
//	    ValuePaid: cocoa.NGN(7_000_00),
//	    Warehouse: "Ondo",
//	})
//
// Sacks delivered on the same day to the same warehouse are packed into
// bags, splitting a sack across bags where needed. Bags are packed whole
// into batches:
//
//	bags, err := l.AutoPackBags(ctx)
//	batches, err := l.AutoPackBatches(ctx, batch.ProductLiquor)
//
// A pre-processing warrant over bags makes their sacks eligible for a
// bundle, which lenders then fund:
//
//	_, err = l.IssueWarrant(ctx, warrant.TypePreProcessing, bagIDs)
//	b, err := l.CreateBundle(ctx, cocoa.CreateBundleInput{SackIDs: sackIDs})
//	_, err = l.FundBundle(ctx, lenderID, b.ID, cocoa.NGN(1_500_00))
//
// When the buyer pays, the invoice is settled batch by batch:
//
//	res, err := l.SettleInvoice(ctx, cocoa.SettleInput{
//	    BatchIDs:         batchIDs,
//	    AmountPaid:       cocoa.NGN(500_000_00),
//	    PercentToFarmers: decimal.RequireFromString("0.5"),
//	})
//
// Settlement commits once per batch. If it fails part way, the returned
// invoice shows what was settled and ResumeSettlement picks up the rest.
//
// # Money
//
// All monetary amounts are integers in the smallest currency unit (kobo
// for NGN). Pro-rata splits use largest-remainder rounding so the parts
// always add up to the whole.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	sack_01h2xcejqtf2nbrexx3vqjhp41  // Sack ID
//	bdl_01h2xcejqtf2nbrexx3vqjhp41   // Bundle ID
//	inv_01h455vb4pex5vsknk084sn02q   // Invoice ID
package cocoa
