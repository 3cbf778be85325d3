package storage

import (
	"fmt"

	"expenses/internal/core"
)

// partitionTables maps each category to its table. Table names only ever
// come from here; a category without an entry needs a new migration.
var partitionTables = map[core.Category]string{
	core.Fuel:     "expenses_fuel",
	core.Products: "expenses_products",
	core.Food:     "expenses_food",
	core.Coffee:   "expenses_coffee",
	core.Gifting:  "expenses_gifting",
}

func partitionFor(c core.Category) (string, error) {
	table, ok := partitionTables[c]
	if !ok {
		return "", fmt.Errorf("%w: no partition for %s", core.ErrUnknownCategory, c)
	}
	return table, nil
}
