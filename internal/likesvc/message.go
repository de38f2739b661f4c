package likesvc

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Message field names.
const (
	FieldTheta       = "theta"
	FieldU           = "u"
	FieldN           = "n"
	FieldSeed        = "seed"
	FieldLnLike      = "lnlike"
	FieldLnPrior     = "lnprior"
	FieldChi2        = "chi2"
	FieldKinds       = "kinds"
	FieldPassed      = "passed"
	FieldReason      = "reason"
	FieldError       = "error"
	FieldEvalID      = "eval_id"
	FieldSamples     = "samples"
	FieldStar        = "star"
	FieldCombination = "combination"
	FieldRunID       = "run_id"
	FieldLabels      = "labels"
	FieldBounds      = "bounds"
	FieldPriorMean   = "prior_mean"
	FieldPriorStd    = "prior_std"
)

// #region encode
func floatList(v []float64) []any {
	out := make([]any, len(v))
	for i, x := range v {
		out[i] = x
	}
	return out
}

func floatMatrix(rows [][]float64) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = floatList(r)
	}
	return out
}

func stringList(v []string) []any {
	out := make([]any, len(v))
	for i, s := range v {
		out[i] = s
	}
	return out
}

// #endregion encode

// #region decode
func getFloats(s *structpb.Struct, field string) ([]float64, error) {
	v, ok := s.GetFields()[field]
	if !ok {
		return nil, fmt.Errorf("field %q is required", field)
	}
	return valueFloats(v, field)
}

func valueFloats(v *structpb.Value, field string) ([]float64, error) {
	list, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, fmt.Errorf("field %q must be a list of numbers", field)
	}
	vals := list.ListValue.GetValues()
	out := make([]float64, len(vals))
	for i, x := range vals {
		n, ok := x.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("field %q element %d is not a number", field, i)
		}
		out[i] = n.NumberValue
	}
	return out, nil
}

func getMatrix(s *structpb.Struct, field string) ([][]float64, error) {
	v, ok := s.GetFields()[field]
	if !ok {
		return nil, fmt.Errorf("field %q is required", field)
	}
	list, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, fmt.Errorf("field %q must be a list of rows", field)
	}
	rows := make([][]float64, len(list.ListValue.GetValues()))
	for i, r := range list.ListValue.GetValues() {
		row, err := valueFloats(r, fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	return rows, nil
}

// getNumber returns a numeric field, or def when it is absent.
func getNumber(s *structpb.Struct, field string, def float64) (float64, error) {
	v, ok := s.GetFields()[field]
	if !ok {
		return def, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("field %q must be a number", field)
	}
	return n.NumberValue, nil
}

func getStrings(s *structpb.Struct, field string) []string {
	vals := s.GetFields()[field].GetListValue().GetValues()
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = v.GetStringValue()
	}
	return out
}

// #endregion decode
