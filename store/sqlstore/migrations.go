package sqlstore

// Models lists every table the store owns, in creation order.
var Models = []any{
	&farmerModel{},
	&sackModel{},
	&bagModel{},
	&bagAllocationModel{},
	&batchModel{},
	&batchBagModel{},
	&warrantModel{},
	&warrantCoverageModel{},
	&lenderModel{},
	&bundleModel{},
	&bundleSackModel{},
	&bundleFundingModel{},
	&tokenModel{},
	&tipModel{},
	&invoiceModel{},
}
