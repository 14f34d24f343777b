package pipeline

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"salesetl/internal/dag"
	"salesetl/internal/table"
)

func TestFetchMissing(t *testing.T) {
	t.Parallel()

	e := newEnv(t, StoresFile)
	p := New(e.cfg, "")

	out, err := p.fetch(CategoryFile)(context.Background(), nil)
	if err != nil || !reflect.DeepEqual(out, []string{filepath.Join(e.cfg.Dirs.Input, CategoryFile)}) {
		t.Fatalf("fetch category = %v, %v", out, err)
	}

	_, err = p.fetch(StoresFile)(context.Background(), nil)
	var mi *MissingInputError
	if !errors.As(err, &mi) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("fetch stores err = %v", err)
	}
}

func TestFilterUSStores(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	p := New(e.cfg, "")
	src := filepath.Join(e.cfg.Dirs.Input, StoresFile)

	out, err := p.filterUSStores(context.Background(), dag.Inputs{FetchStores: {src}})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	in, got := readTable(t, src), readTable(t, out[0])
	if !reflect.DeepEqual(got.Columns, in.Columns) {
		t.Fatalf("columns = %v", got.Columns)
	}
	if got.Len() != 3 {
		t.Fatalf("rows = %d, want 3", got.Len())
	}
	for _, row := range got.Rows {
		if row[3] != "United States" {
			t.Fatalf("non-US row kept: %v", row)
		}
	}
}

func TestFilterCaseSensitive(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	src := filepath.Join(e.cfg.Dirs.Input, StoresFile)
	writeLines(t, src,
		"Store_ID,Country",
		"S-1,united states",
		"S-2,United States ",
		"S-3,United States",
	)
	out, err := New(e.cfg, "").filterUSStores(context.Background(), dag.Inputs{FetchStores: {src}})
	if err != nil {
		t.Fatal(err)
	}
	if got := readTable(t, out[0]); got.Len() != 1 || got.Rows[0][0] != "S-3" {
		t.Fatalf("rows = %v", got.Rows)
	}
}

func TestFilterMissingCountry(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	src := filepath.Join(e.cfg.Dirs.Input, StoresFile)
	writeLines(t, src, "Store_ID,Store_Name", "S-1,Fifth Avenue")

	_, err := New(e.cfg, "").filterUSStores(context.Background(), dag.Inputs{FetchStores: {src}})
	var se *SchemaError
	if !errors.As(err, &se) || se.Path != src {
		t.Fatalf("err = %v, want SchemaError for %s", err, src)
	}
}

func TestRemoveProductLaunchDate(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	src := filepath.Join(e.cfg.Dirs.Input, ProductsFile)
	out, err := New(e.cfg, "").removeProductLaunchDate(context.Background(), dag.Inputs{FetchProducts: {src}})
	if err != nil {
		t.Fatal(err)
	}
	got := readTable(t, out[0])
	want := []string{"Product_ID", "Product_Name", "Category_ID", "Price"}
	if !reflect.DeepEqual(got.Columns, want) || got.Len() != 5 {
		t.Fatalf("columns = %v rows = %d", got.Columns, got.Len())
	}
	if got.Rows[2][3] != "2000" {
		t.Fatalf("row 3 = %v", got.Rows[2])
	}
}

func TestMergeMissingKeyBlamesFile(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	dir := e.cfg.Dirs.Input
	sales := filepath.Join(dir, SalesFile)
	writeLines(t, sales, "sale_id,store_id,quantity", "1,S-1,2")

	in := dag.Inputs{
		FetchCategories:         {filepath.Join(dir, CategoryFile)},
		RemoveProductLaunchDate: {filepath.Join(dir, ProductsFile)},
		FetchSales:              {sales},
		FilterUSStores:          {filepath.Join(dir, StoresFile)},
	}
	_, err := New(e.cfg, "").mergeAppleData(context.Background(), in)
	var se *SchemaError
	if !errors.As(err, &se) || se.Path != sales || !errors.Is(err, table.ErrMissingColumn) {
		t.Fatalf("err = %v, want missing column in %s", err, sales)
	}
}

// mergeInputs writes the four merge inputs into the input directory.
func mergeInputs(t *testing.T, e env, categories, products, sales, stores []string) dag.Inputs {
	t.Helper()
	dir := e.cfg.Dirs.Input
	files := []struct {
		task, name string
		lines      []string
	}{
		{FetchCategories, CategoryFile, categories},
		{RemoveProductLaunchDate, ProductNoLaunchFile, products},
		{FetchSales, SalesFile, sales},
		{FilterUSStores, USStoresFile, stores},
	}
	in := make(dag.Inputs, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		writeLines(t, path, f.lines...)
		in[f.task] = []string{path}
	}
	return in
}

// TestMergeUnmatchedOnEverySide runs the full join chain with a key that
// finds no partner at each step and a Price column present on two sides.
func TestMergeUnmatchedOnEverySide(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	in := mergeInputs(t, e,
		[]string{
			"category_id,category_name",
			"1,Laptop",
			"2,Tablet",
			"9,Watch", // no product
		},
		[]string{
			"Product_ID,Product_Name,Category_ID,Price",
			"10,MacBook,1,2000",
			"20,iPad,2,500",
			"30,Orphan,8,1", // unknown category
		},
		[]string{
			"sale_id,store_id,product_id,quantity,Price",
			"1,100,10,1,1999",
			"2,200,20,2,499",
			"3,100,99,1,5",    // unknown product
			"4,999,10,1,1999", // unknown store
			"5,300,30,1,1",    // product dropped by the first join
		},
		[]string{
			"Store_ID,Store_Name,Country",
			"100,Fifth Avenue,United States",
			"200,Union Square,United States",
			"300,Michigan Avenue,United States",
		},
	)

	p := New(e.cfg, "")
	out, err := p.mergeAppleData(context.Background(), in)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	got := readTable(t, out[0])

	wantCols := []string{
		"category_id", "category_name",
		"Product_ID", "Product_Name", "Category_ID", "Price_x",
		"sale_id", "store_id", "product_id", "quantity", "Price_y",
		"Store_ID", "Store_Name", "Country",
	}
	if !reflect.DeepEqual(got.Columns, wantCols) {
		t.Fatalf("columns = %v, want %v", got.Columns, wantCols)
	}
	sales, _ := got.Column("sale_id")
	if !reflect.DeepEqual(sales, []string{"1", "2"}) {
		t.Fatalf("sale_id = %v, want [1 2]", sales)
	}

	// Price was suffixed away, so the revenue step must refuse the file.
	_, err = p.addRevenueColumn(context.Background(), dag.Inputs{MergeAppleData: out})
	var se *SchemaError
	if !errors.As(err, &se) || !errors.Is(err, table.ErrMissingColumn) {
		t.Fatalf("add revenue err = %v, want missing Price", err)
	}
}

// TestMergeMissingLeftKeyBlamesSource checks that a left key missing at a
// later join is charged to the file that should carry it.
func TestMergeMissingLeftKeyBlamesSource(t *testing.T) {
	t.Parallel()

	categories := []string{"category_id,category_name", "1,Laptop"}
	products := []string{"Product_ID,Category_ID,Price", "10,1,2000"}
	sales := []string{"sale_id,store_id,product_id,quantity", "1,100,10,1"}
	stores := []string{"Store_ID,Country", "100,United States"}

	tests := []struct {
		name     string
		products []string
		sales    []string
		blame    string
		step     string
	}{
		{
			name:     "product_id_missing",
			products: []string{"Category_ID,Price", "1,2000"},
			sales:    sales,
			blame:    RemoveProductLaunchDate,
			step:     "join 2 of 3",
		},
		{
			name:     "store_id_missing",
			products: products,
			sales:    []string{"sale_id,product_id,quantity", "1,10,1"},
			blame:    FetchSales,
			step:     "join 3 of 3",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newEnv(t)
			in := mergeInputs(t, e, categories, tt.products, tt.sales, stores)

			_, err := New(e.cfg, "").mergeAppleData(context.Background(), in)
			var se *SchemaError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want SchemaError", err)
			}
			if want := in.Path(tt.blame); se.Path != want {
				t.Fatalf("blamed %s, want %s", se.Path, want)
			}
			if !strings.Contains(err.Error(), tt.step) {
				t.Fatalf("err = %v, want it to name %q", err, tt.step)
			}
		})
	}
}

func TestAddRevenueColumn(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	if err := os.MkdirAll(e.cfg.Dirs.Intermediate, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(e.cfg.Dirs.Intermediate, AppleDataFile)
	writeLines(t, path,
		"category_name,Price,quantity",
		"Laptop,1999,3",
		"Tablet,,2",
		"Tablet,2.5,4",
		"Phone,10,",
	)

	if _, err := New(e.cfg, "").addRevenueColumn(context.Background(), dag.Inputs{MergeAppleData: {path}}); err != nil {
		t.Fatalf("add revenue: %v", err)
	}
	got := readTable(t, path)
	rev, _ := got.Column(ColRevenue)
	if want := []string{"5997", "", "10", ""}; !reflect.DeepEqual(rev, want) {
		t.Fatalf("revenue = %q, want %q", rev, want)
	}

	// Every non-blank revenue equals Price * quantity.
	price, _ := got.Column(ColPrice)
	qty, _ := got.Column(ColQuantity)
	for i := range rev {
		if rev[i] == "" {
			continue
		}
		p, _ := strconv.ParseFloat(price[i], 64)
		q, _ := strconv.ParseFloat(qty[i], 64)
		r, _ := strconv.ParseFloat(rev[i], 64)
		if r != p*q {
			t.Errorf("row %d: revenue %v != %v * %v", i, r, p, q)
		}
	}
}

func TestAddRevenueColumnErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		lines []string
		want  error
	}{
		{"missing_quantity", []string{"Price", "10"}, table.ErrMissingColumn},
		{"non_numeric", []string{"Price,quantity", "ten,1"}, nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newEnv(t)
			path := filepath.Join(e.cfg.Dirs.Input, AppleDataFile)
			writeLines(t, path, tt.lines...)

			_, err := New(e.cfg, "").addRevenueColumn(context.Background(), dag.Inputs{MergeAppleData: {path}})
			var se *SchemaError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want SchemaError", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAggregateRevenueByCategory(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	if err := os.MkdirAll(e.cfg.Dirs.Intermediate, 0o755); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(e.cfg.Dirs.Intermediate, AppleDataFile)
	writeLines(t, src,
		"category_name,revenue",
		"Tablet,1500",
		"Laptop,2000",
		"Tablet,",
		",999",
		"Laptop,0.5",
		"Watch,",
	)

	out, err := New(e.cfg, "").aggregateRevenueByCategory(context.Background(), dag.Inputs{AddRevenueColumn: {src}})
	if err != nil {
		t.Fatal(err)
	}
	got := readTable(t, out[0])
	want := [][]string{{"Laptop", "2000.5"}, {"Tablet", "1500"}, {"Watch", "0"}}
	if !reflect.DeepEqual(got.Rows, want) {
		t.Fatalf("rows = %v, want %v", got.Rows, want)
	}

	// Total is conserved for rows with a category.
	sum, _, _ := got.Floats(ColRevenue)
	var total float64
	for _, v := range sum {
		total += v
	}
	if math.Abs(total-3500.5) > 1e-9 {
		t.Fatalf("total = %v", total)
	}
}

func TestAggregateEmptyStillPlots(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	if err := os.MkdirAll(e.cfg.Dirs.Intermediate, 0o755); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(e.cfg.Dirs.Intermediate, AppleDataFile)
	writeLines(t, src, "category_name,revenue")

	p := New(e.cfg, "")
	agg, err := p.aggregateRevenueByCategory(context.Background(), dag.Inputs{AddRevenueColumn: {src}})
	if err != nil {
		t.Fatal(err)
	}
	if got := readTable(t, agg[0]); got.Len() != 0 {
		t.Fatalf("rows = %v", got.Rows)
	}
	if _, err := p.plotRevenueByCategory(context.Background(), dag.Inputs{AggregateRevenueByCategory: agg}); err != nil {
		t.Fatalf("plot: %v", err)
	}
}

func TestPlotMissingResultsDir(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	src := filepath.Join(e.cfg.Dirs.Input, RevenueByCategoryFile)
	writeLines(t, src, "category_name,revenue", "Laptop,1")
	e.cfg.Dirs.Results = filepath.Join(t.TempDir(), "absent")

	_, err := New(e.cfg, "").plotRevenueByCategory(context.Background(), dag.Inputs{AggregateRevenueByCategory: {src}})
	var ioe *IOError
	if !errors.As(err, &ioe) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want IOError not-exist", err)
	}
	if _, err := os.Stat(e.cfg.Dirs.Results); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("results dir was created")
	}
}

func TestClearIntermediateData(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	dir := e.cfg.Dirs.Intermediate
	if err := os.MkdirAll(filepath.Join(dir, "nested", "deeper"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeLines(t, filepath.Join(dir, AppleDataFile), "a")
	writeLines(t, filepath.Join(dir, USStoresFile), "a")
	writeLines(t, filepath.Join(dir, "nested", "deeper", "x.csv"), "a")

	p := New(e.cfg, "")
	if _, err := p.clearIntermediateData(context.Background(), nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("dir removed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("%d entries left", len(entries))
	}

	// A missing directory is not a failure.
	p.cfg.Dirs.Intermediate = filepath.Join(t.TempDir(), "gone")
	if _, err := p.clearIntermediateData(context.Background(), nil); err != nil {
		t.Fatalf("clear missing dir: %v", err)
	}
}

func TestCountryAbbrev(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{"United States": "US", "Japan": "Japan"} {
		if got := countryAbbrev(in); got != want {
			t.Errorf("countryAbbrev(%q) = %q", in, got)
		}
	}
}
