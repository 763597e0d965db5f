package sales

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
)

// exportPageSize bounds memory while streaming large date ranges.
const exportPageSize = 500

// ExportCSV streams sales in the filter range as CSV, one row per line item.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, filter ListFilter) error {
	cw := csv.NewWriter(w)
	header := []string{"sale_id", "created_at", "cashier", "payment_method", "payment_status", "sku", "qty", "unit_price", "line_total", "sale_total"}
	if err := cw.Write(header); err != nil {
		return err
	}

	filter.Limit = exportPageSize
	filter.Page = 1
	for {
		sales, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return err
		}
		for _, sale := range sales {
			for _, item := range sale.Items {
				record := []string{
					sale.SaleID,
					sale.CreatedAt.Format("2006-01-02 15:04:05"),
					sale.CreatedByUser.Email,
					string(sale.PaymentMethod),
					string(sale.PaymentStatus),
					item.SKU,
					strconv.Itoa(item.Qty),
					strconv.FormatFloat(item.Price, 'f', 2, 64),
					strconv.FormatFloat(item.LineTotal, 'f', 2, 64),
					strconv.FormatFloat(sale.Total, 'f', 2, 64),
				}
				if err := cw.Write(record); err != nil {
					return err
				}
			}
		}
		if filter.Page*exportPageSize >= total || len(sales) == 0 {
			break
		}
		filter.Page++
	}

	cw.Flush()
	return cw.Error()
}
