package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"salesetl/internal/chart"
	"salesetl/internal/dag"
	"salesetl/internal/datasource/file"
	"salesetl/internal/fsutil"
	"salesetl/internal/metrics"
	"salesetl/internal/table"
)

// Tasks returns the task definitions with their dependency edges.
func (p *Pipeline) Tasks() []dag.Task {
	return []dag.Task{
		{Name: FetchCategories, Run: p.fetch(CategoryFile)},
		{Name: FetchProducts, Run: p.fetch(ProductsFile)},
		{Name: FetchSales, Run: p.fetch(SalesFile)},
		{Name: FetchStores, Run: p.fetch(StoresFile)},

		{Name: FilterUSStores, Deps: []string{FetchStores}, Run: p.filterUSStores},
		{Name: RemoveProductLaunchDate, Deps: []string{FetchProducts}, Run: p.removeProductLaunchDate},

		{
			Name: MergeAppleData,
			Deps: []string{FetchCategories, RemoveProductLaunchDate, FetchSales, FilterUSStores},
			Run:  p.mergeAppleData,
		},
		// The merge edge keeps the filter outputs in place until the join has
		// read them.
		{
			Name: MoveDatasetsToIntermediate,
			Deps: []string{FilterUSStores, RemoveProductLaunchDate, MergeAppleData},
			Run:  p.moveDatasetsToIntermediate,
		},

		{Name: AddRevenueColumn, Deps: []string{MergeAppleData}, Run: p.addRevenueColumn},
		{Name: AggregateRevenueByCategory, Deps: []string{AddRevenueColumn}, Run: p.aggregateRevenueByCategory},
		{Name: PlotRevenueByCategory, Deps: []string{AggregateRevenueByCategory}, Run: p.plotRevenueByCategory},
		{Name: PublishRevenueByCategory, Deps: []string{AggregateRevenueByCategory}, Run: p.publishRevenueByCategory},

		// The move edge keeps cleanup from racing the archival task.
		{
			Name: ClearIntermediateData,
			Deps: []string{PlotRevenueByCategory, PublishRevenueByCategory, MoveDatasetsToIntermediate},
			Run:  p.clearIntermediateData,
		},
	}
}

// fetch confirms that name exists in the input directory and returns its
// path. The content is not inspected.
func (p *Pipeline) fetch(name string) dag.Func {
	return func(_ context.Context, _ dag.Inputs) ([]string, error) {
		path := filepath.Join(p.cfg.Dirs.Input, name)
		ok, err := file.Exists(path)
		if err != nil {
			return nil, &IOError{Op: "stat", Path: path, Err: err}
		}
		if !ok {
			return nil, &MissingInputError{Path: path, Err: os.ErrNotExist}
		}
		return []string{path}, nil
	}
}

// filterUSStores keeps the store rows whose Country equals the configured
// country exactly.
func (p *Pipeline) filterUSStores(ctx context.Context, in dag.Inputs) ([]string, error) {
	src := in.Path(FetchStores)
	stores, err := p.read(ctx, src)
	if err != nil {
		return nil, err
	}
	country := p.cfg.Filter.Country
	out, err := stores.Filter(ColCountry, func(v string) bool { return v == country })
	if err != nil {
		return nil, schemaErr(src, err)
	}

	dst := filepath.Join(p.cfg.Dirs.Input, USStoresFile)
	if err := p.write(dst, out); err != nil {
		return nil, err
	}
	metrics.RecordRows(p.cfg.Job, "filtered", int64(stores.Len()-out.Len()))
	log.Printf("pipeline: filter country=%q kept=%d of=%d", country, out.Len(), stores.Len())
	return []string{dst}, nil
}

// removeProductLaunchDate drops the configured column from products.
func (p *Pipeline) removeProductLaunchDate(ctx context.Context, in dag.Inputs) ([]string, error) {
	src := in.Path(FetchProducts)
	products, err := p.read(ctx, src)
	if err != nil {
		return nil, err
	}
	out, err := products.DropColumn(p.cfg.Filter.DropColumn)
	if err != nil {
		return nil, schemaErr(src, err)
	}

	dst := filepath.Join(p.cfg.Dirs.Input, ProductNoLaunchFile)
	if err := p.write(dst, out); err != nil {
		return nil, err
	}
	return []string{dst}, nil
}

// joinStep is one inner join of the merge chain. leftFrom names the task
// whose file supplies the left key column.
type joinStep struct {
	dep               string
	leftFrom          string
	leftKey, rightKey string
}

var mergeSteps = []joinStep{
	{dep: RemoveProductLaunchDate, leftFrom: FetchCategories, leftKey: ColCategoryID, rightKey: ColProductCatID},
	{dep: FetchSales, leftFrom: RemoveProductLaunchDate, leftKey: ColProductID, rightKey: ColSaleProduct},
	{dep: FilterUSStores, leftFrom: FetchSales, leftKey: ColSaleStore, rightKey: ColStoreID},
}

// mergeAppleData inner-joins categories, products, sales and US stores, in
// that order.
func (p *Pipeline) mergeAppleData(ctx context.Context, in dag.Inputs) ([]string, error) {
	src := in.Path(FetchCategories)
	acc, err := p.read(ctx, src)
	if err != nil {
		return nil, err
	}
	for i, s := range mergeSteps {
		right := in.Path(s.dep)
		rt, err := p.read(ctx, right)
		if err != nil {
			return nil, err
		}
		joined, err := table.InnerJoin(acc, rt, s.leftKey, s.rightKey)
		if err != nil {
			// Blame the file the missing key comes from. A left key can also
			// go missing when an earlier join suffixed it.
			blame := right
			if !acc.Has(s.leftKey) {
				blame = in.Path(s.leftFrom)
			}
			return nil, schemaErr(blame, fmt.Errorf("join %d of %d (%s=%s): %w", i+1, len(mergeSteps), s.leftKey, s.rightKey, err))
		}
		if p.Verbose {
			log.Printf("pipeline: join %s=%s left=%d right=%d out=%d", s.leftKey, s.rightKey, acc.Len(), rt.Len(), joined.Len())
		}
		acc = joined
	}

	if err := ensureDir(p.cfg.Dirs.Intermediate); err != nil {
		return nil, err
	}
	dst := filepath.Join(p.cfg.Dirs.Intermediate, AppleDataFile)
	if err := p.write(dst, acc); err != nil {
		return nil, err
	}
	metrics.RecordRows(p.cfg.Job, "joined", int64(acc.Len()))
	return []string{dst}, nil
}

// moveDatasetsToIntermediate relocates both filter outputs into the
// intermediate directory, replacing earlier copies.
func (p *Pipeline) moveDatasetsToIntermediate(_ context.Context, in dag.Inputs) ([]string, error) {
	if err := ensureDir(p.cfg.Dirs.Intermediate); err != nil {
		return nil, err
	}
	var moved []string
	for _, dep := range []string{FilterUSStores, RemoveProductLaunchDate} {
		src := in.Path(dep)
		dst := filepath.Join(p.cfg.Dirs.Intermediate, filepath.Base(src))
		if err := fsutil.Move(src, dst); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, &MissingInputError{Path: src, Err: err}
			}
			return nil, &IOError{Op: "move", Path: src, Err: err}
		}
		log.Printf("pipeline: moved %s -> %s", src, dst)
		moved = append(moved, dst)
	}
	return moved, nil
}

// addRevenueColumn appends revenue = Price * quantity and overwrites the
// merged file. A blank factor gives a blank revenue.
func (p *Pipeline) addRevenueColumn(ctx context.Context, in dag.Inputs) ([]string, error) {
	path := in.Path(MergeAppleData)
	t, err := p.read(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := t.Require(ColPrice, ColQuantity); err != nil {
		return nil, schemaErr(path, err)
	}
	price, priceOK, err := t.Floats(ColPrice)
	if err != nil {
		return nil, schemaErr(path, err)
	}
	qty, qtyOK, err := t.Floats(ColQuantity)
	if err != nil {
		return nil, schemaErr(path, err)
	}

	revenue := make([]string, t.Len())
	for r := range revenue {
		if priceOK[r] && qtyOK[r] {
			revenue[r] = table.FormatFloat(price[r] * qty[r])
		}
	}
	if err := t.SetColumn(ColRevenue, revenue); err != nil {
		return nil, schemaErr(path, err)
	}
	if err := p.write(path, t); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

// aggregateRevenueByCategory sums revenue per category_name. Rows with a
// blank category are dropped; blank revenue adds nothing. Output rows are
// sorted by category.
func (p *Pipeline) aggregateRevenueByCategory(ctx context.Context, in dag.Inputs) ([]string, error) {
	src := in.Path(AddRevenueColumn)
	t, err := p.read(ctx, src)
	if err != nil {
		return nil, err
	}
	if err := t.Require(ColCategoryName, ColRevenue); err != nil {
		return nil, schemaErr(src, err)
	}
	revenue, ok, err := t.Floats(ColRevenue)
	if err != nil {
		return nil, schemaErr(src, err)
	}
	names, _ := t.Column(ColCategoryName)

	sums := make(map[string]float64)
	for r, name := range names {
		if name == "" {
			continue
		}
		if ok[r] {
			sums[name] += revenue[r]
		} else if _, seen := sums[name]; !seen {
			sums[name] = 0
		}
	}

	keys := make([]string, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := table.New(ColCategoryName, ColRevenue)
	for _, k := range keys {
		out.Append(k, table.FormatFloat(sums[k]))
	}

	dst := filepath.Join(p.cfg.Dirs.Intermediate, RevenueByCategoryFile)
	if err := p.write(dst, out); err != nil {
		return nil, err
	}
	metrics.RecordRows(p.cfg.Job, "aggregated", int64(out.Len()))
	return []string{dst}, nil
}

// plotRevenueByCategory renders the aggregate as a bar chart into the
// results directory, which must already exist.
func (p *Pipeline) plotRevenueByCategory(ctx context.Context, in dag.Inputs) ([]string, error) {
	src := in.Path(AggregateRevenueByCategory)
	t, err := p.read(ctx, src)
	if err != nil {
		return nil, err
	}
	if err := t.Require(ColCategoryName, ColRevenue); err != nil {
		return nil, schemaErr(src, err)
	}
	values, _, err := t.Floats(ColRevenue)
	if err != nil {
		return nil, schemaErr(src, err)
	}
	labels, _ := t.Column(ColCategoryName)

	if err := requireDir(p.cfg.Dirs.Results); err != nil {
		return nil, err
	}
	dst := filepath.Join(p.cfg.Dirs.Results, PlotFile)
	err = chart.Render(dst, chart.Bar{
		Title:  "Total " + countryAbbrev(p.cfg.Filter.Country) + " Revenue by Category",
		XLabel: "Category",
		YLabel: "Revenue (Hundred Million USD)",
		Legend: "Revenue",
		Labels: labels,
		Values: values,
	})
	if err != nil {
		return nil, &IOError{Op: "render", Path: dst, Err: err}
	}
	log.Printf("pipeline: plotted path=%s bars=%d", dst, len(values))
	return []string{dst}, nil
}

// countryAbbrev shortens the default country for the chart title.
func countryAbbrev(country string) string {
	if strings.EqualFold(country, "United States") {
		return "US"
	}
	return country
}

// clearIntermediateData empties the intermediate directory. A missing
// directory is fine; a failure on one entry is logged and skipped.
func (p *Pipeline) clearIntermediateData(_ context.Context, _ dag.Inputs) ([]string, error) {
	dir := p.cfg.Dirs.Intermediate
	removed, failed, err := fsutil.ClearDir(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Printf("pipeline: cleanup dir=%s does not exist, nothing to clear", dir)
		return nil, nil
	case err != nil:
		return nil, &IOError{Op: "list", Path: dir, Err: err}
	}
	for _, f := range failed {
		log.Printf("pipeline: cleanup failed path=%s err=%v", f.Path, f.Err)
	}
	log.Printf("pipeline: cleanup dir=%s removed=%d failed=%d", dir, removed, len(failed))
	return nil, nil
}
