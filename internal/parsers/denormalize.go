package parsers

import (
	"strconv"

	"golang-pos-analytics/internal/models"
)

// denormalizedColumns is the canonical column order written by Denormalize
var denormalizedColumns = []string{
	ColOrderID, ColSaleID, ColTimestamp, ColPaidAt,
	ColAmountTotal, ColSubtotal, ColDiscount, ColDeliveryFee, ColInvoiceAmount,
	ColOrderType, ColPaymentMethods, ColStatus, ColValidity, ColVoided,
	ColTable, ColCustomer, ColServer, ColDetail,
}

// Denormalize re-emits records as a raw table with canonical headers.
// Normalizing the result with the same report type yields the same records.
func Denormalize(records []*models.Record, report models.ReportType) *models.RawTable {
	table := &models.RawTable{
		Source:  "denormalized:" + report.String(),
		Headers: append([]string(nil), denormalizedColumns...),
		Rows:    make([][]string, 0, len(records)),
	}

	for _, r := range records {
		table.Rows = append(table.Rows, []string{
			r.OrderID,
			r.SaleID,
			models.FormatDayFirst(r.Timestamp),
			models.FormatDayFirst(r.PaidAt),
			r.AmountTotal.String(),
			r.Subtotal.String(),
			r.Discount.String(),
			r.DeliveryFee.String(),
			r.InvoiceAmount.String(),
			r.OrderType,
			r.PaymentMethods,
			r.Status,
			r.ValidityState,
			strconv.FormatBool(r.Voided),
			r.TableID,
			r.Customer,
			r.ServerID,
			r.DetailText,
		})
	}

	return table
}
