package search

import (
	"fmt"

	"github.com/okian/birdboard/internal/domain/model"
)

// ErrEmptyQuery is returned when the query is blank after trimming.
var ErrEmptyQuery = fmt.Errorf("%w: empty search query", model.ErrInvalidInput)
