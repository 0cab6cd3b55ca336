package modeladapter

import (
	"encoding/json"

	"github.com/germanamz/tether/pkg/chats/content"
	"github.com/germanamz/tether/pkg/chats/turn"
	"github.com/germanamz/tether/pkg/tools/toolbox"
)

// perTurnOverhead is the estimated token overhead for each turn (role and
// structure delimiters).
const perTurnOverhead = 4

// perDeclarationOverhead is the estimated token overhead for each function
// declaration.
const perDeclarationOverhead = 10

// TokenEstimator estimates token counts for a history and its tool
// declarations using the 1-token-per-4-characters heuristic.
// The zero value is ready to use.
type TokenEstimator struct{}

func charsToTokens(chars int) int {
	return (chars + 3) / 4 // round up
}

// EstimateHistory estimates the input tokens of a conversation history.
func (e *TokenEstimator) EstimateHistory(history []turn.Turn) int {
	tokens := 0

	for _, t := range history {
		tokens += perTurnOverhead

		for _, p := range t.Parts {
			switch v := p.(type) {
			case content.Text:
				tokens += charsToTokens(len(v.Text))
			case content.FunctionCall:
				args, _ := json.Marshal(v.Args)
				tokens += charsToTokens(len(v.Name) + len(args))
			case content.Image:
				tokens += charsToTokens(len(v.URL))
			}
		}
	}

	return tokens
}

// EstimateDeclarations estimates the token cost of function declarations.
func (e *TokenEstimator) EstimateDeclarations(decls []toolbox.Declaration) int {
	tokens := 0

	for _, d := range decls {
		params, _ := json.Marshal(d.Parameters)
		tokens += charsToTokens(len(d.Name)+len(d.Description)+len(params)) + perDeclarationOverhead
	}

	return tokens
}

// EstimateTotal estimates the prompt size of one model round.
func (e *TokenEstimator) EstimateTotal(history []turn.Turn, decls []toolbox.Declaration) int {
	return e.EstimateHistory(history) + e.EstimateDeclarations(decls)
}
