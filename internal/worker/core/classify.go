package core

import (
	"context"
	"fmt"
	"slices"

	"github.com/robalyx/reciprocal/internal/social"
)

// Classify looks up the relations of ids in MaxLookupBatch batches and
// returns the ids whose relation satisfies keep, in lookup order.
func Classify(
	ctx context.Context, api social.API, caller *social.Caller, mode social.WaitMode,
	ids []int64, keep func(social.Relation) bool,
) ([]int64, error) {
	kept := make([]int64, 0, len(ids))

	for batch := range slices.Chunk(ids, social.MaxLookupBatch) {
		relations, err := social.Call(ctx, caller, mode, "lookup_relations",
			func(ctx context.Context) ([]social.Relation, error) {
				return api.LookupRelations(ctx, batch)
			})
		if err != nil {
			return kept, fmt.Errorf("failed to look up relations: %w", err)
		}

		for _, relation := range relations {
			if keep(relation) {
				kept = append(kept, relation.ID)
			}
		}
	}

	return kept, nil
}
