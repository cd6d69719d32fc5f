package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

type ItemWriter interface {
	Upsert(ctx context.Context, item domain.Item, categorySlugs []string) (*domain.Item, error)
}

// CSVImporter reads catalog CSV files and inserts or updates items keyed by slug.
type CSVImporter struct {
	reader *csv.Reader
	items  ItemWriter
	logger *zap.Logger
}

func NewCSVImporter(r io.Reader, items ItemWriter, logger *zap.Logger) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader: csvr,
		items:  items,
		logger: logging.OrNop(logger),
	}
}

var requiredColumns = []string{"title", "slug", "price"}

// Run parses every row and upserts it. It stops at the first invalid row and
// returns how many rows were imported before it.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return 0, fmt.Errorf("missing column %q", col)
		}
	}

	imported := 0
	line := 1
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		line++
		if blank(record) {
			continue
		}

		item, categories, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		saved, err := i.items.Upsert(ctx, item, categories)
		if err != nil {
			return imported, fmt.Errorf("upsert item %q: %w", item.Slug, err)
		}
		i.logger.Debug("item imported", zap.String("slug", saved.Slug), zap.Int("categories", len(categories)))
		imported++
	}

	return imported, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) (domain.Item, []string, error) {
	item := domain.Item{
		Title:       pick(record, index, "title"),
		Slug:        pick(record, index, "slug"),
		Label:       strings.ToUpper(pick(record, index, "label")),
		LabelName:   strings.ToUpper(pick(record, index, "label_name")),
		Description: pick(record, index, "description"),
	}
	if item.Title == "" || item.Slug == "" {
		return domain.Item{}, nil, errors.New("title and slug are required")
	}

	price, err := decimal.NewFromString(pick(record, index, "price"))
	if err != nil {
		return domain.Item{}, nil, fmt.Errorf("invalid price for %q: %w", item.Slug, err)
	}
	if price.IsNegative() {
		return domain.Item{}, nil, fmt.Errorf("negative price for %q", item.Slug)
	}
	item.Price = price

	if raw := pick(record, index, "discount_price"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return domain.Item{}, nil, fmt.Errorf("invalid discount_price for %q: %w", item.Slug, err)
		}
		if d.IsNegative() {
			return domain.Item{}, nil, fmt.Errorf("negative discount_price for %q", item.Slug)
		}
		item.DiscountPrice = &d
	}

	switch item.Label {
	case "", domain.LabelPrimary, domain.LabelSecondary, domain.LabelDanger:
	default:
		return domain.Item{}, nil, fmt.Errorf("unknown label %q for %q", item.Label, item.Slug)
	}
	switch item.LabelName {
	case "", domain.LabelNameNew, domain.LabelNameSale, domain.LabelNameDiscount, domain.LabelNameOffer:
	default:
		return domain.Item{}, nil, fmt.Errorf("unknown label_name %q for %q", item.LabelName, item.Slug)
	}

	if raw := pick(record, index, "list_on_frontpage"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return domain.Item{}, nil, fmt.Errorf("invalid list_on_frontpage for %q: %w", item.Slug, err)
		}
		item.ListOnFrontpage = v
	}

	var categories []string
	if _, ok := index["categories"]; ok {
		categories = []string{}
		for _, c := range strings.Split(pick(record, index, "categories"), ";") {
			if c = strings.TrimSpace(c); c != "" {
				categories = append(categories, c)
			}
		}
	}
	return item, categories, nil
}

func pick(record []string, index map[string]int, key string) string {
	if idx, ok := index[key]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
