package pricing

import "errors"

var (
	ErrIncompleteTable = errors.New("pricing table is incomplete")
)
