package pcjson

import (
	"fmt"

	"github.com/gwos/pcjsongen/errors"
	"github.com/gwos/pcjsongen/lenexpr"
	"github.com/gwos/pcjsongen/model"
)

// length resolves the length of m over the sibling members of rec and the registry constants
func length(reg *model.Registry, st *model.Struct, rec *Record, m *model.Member) (int, error) {
	if m.Length == "" {
		return 0, fmt.Errorf("%w: member %s has no length", errors.ErrSchemaShape, m.Name)
	}
	expr, err := lenexpr.Parse(m.Length)
	if err != nil {
		return 0, err
	}
	n, err := expr.Eval(func(name string) (int64, bool) {
		if st.Member(name) != nil {
			return signed(rec.Get(name))
		}
		return reg.Constant(name)
	})
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative length %d of %s", errors.ErrInvalidInput, n, m.Name)
	}
	return int(n), nil
}
