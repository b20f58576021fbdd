package pipeline

import "rareport/internal/core"

// Segment splits ds into payin (payment) and payout (transfer) views.
// Rows with any other operation_origin belong to neither.
func Segment(ds *core.Dataset) (payin, payout *core.Dataset, err error) {
	if !ds.Has(core.ColOperation) {
		return nil, nil, &core.MissingColumnError{Column: core.ColOperation, Stage: "segment"}
	}
	var in, out []core.Transaction
	for _, r := range ds.Rows {
		switch r.Operation {
		case core.OperationPayment:
			in = append(in, r)
		case core.OperationTransfer:
			out = append(out, r)
		}
	}
	return ds.WithRows(in), ds.WithRows(out), nil
}
