package agent

import "docqa/internal/models"

// ChooseStrategy maps an analysis to a retrieval strategy. Query type takes
// precedence over intent.
func ChooseStrategy(queryType models.QueryType, intent models.Intent) (models.Strategy, models.SearchParams) {
	switch {
	case queryType == models.QueryTypeComplex:
		return models.StrategyHybridSemanticFirst, models.SearchParams{Limit: 10, SemanticWeight: 0.7}
	case intent == models.IntentDefinition:
		return models.StrategySemanticFocused, models.SearchParams{Limit: 5, SemanticWeight: 0.9}
	default:
		return models.StrategyBalancedHybrid, models.SearchParams{Limit: 7, SemanticWeight: 0.5}
	}
}
