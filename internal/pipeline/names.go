package pipeline

// Task names. They are stable identifiers used in logs, metrics and the run
// summary.
const (
	FetchCategories            = "fetch_categories"
	FetchProducts              = "fetch_products"
	FetchSales                 = "fetch_sales"
	FetchStores                = "fetch_stores"
	FilterUSStores             = "filter_us_stores"
	RemoveProductLaunchDate    = "remove_product_launch_date"
	MergeAppleData             = "merge_apple_data"
	MoveDatasetsToIntermediate = "move_datasets_to_intermediate"
	AddRevenueColumn           = "add_revenue_column"
	AggregateRevenueByCategory = "aggregate_revenue_by_category"
	PlotRevenueByCategory      = "plot_revenue_by_category"
	PublishRevenueByCategory   = "publish_revenue_by_category"
	ClearIntermediateData      = "clear_intermediate_data"
)

// File names.
const (
	CategoryFile = "category.csv"
	ProductsFile = "products.csv"
	SalesFile    = "sales.csv"
	StoresFile   = "stores.csv"

	USStoresFile          = "us_stores.csv"
	ProductNoLaunchFile   = "product_no_launch.csv"
	AppleDataFile         = "apple_data.csv"
	RevenueByCategoryFile = "revenue_by_category.csv"
	PlotFile              = "revenue_by_category_plot.png"
	SummaryFile           = "run_summary.json"
)

// Column names the transforms depend on.
const (
	ColCountry      = "Country"
	ColCategoryID   = "category_id"
	ColProductCatID = "Category_ID"
	ColProductID    = "Product_ID"
	ColSaleProduct  = "product_id"
	ColSaleStore    = "store_id"
	ColStoreID      = "Store_ID"
	ColPrice        = "Price"
	ColQuantity     = "quantity"
	ColRevenue      = "revenue"
	ColCategoryName = "category_name"
)
