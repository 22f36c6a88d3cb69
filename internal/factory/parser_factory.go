package factory

import (
	"github.com/mikey/llm-spam-replier/internal/adapters/parser"
	"github.com/mikey/llm-spam-replier/internal/utils"
	"go.uber.org/zap"
)

// ParserFactory creates the text processing pipeline applied to fetched mail
type ParserFactory struct {
	logger *zap.Logger
}

// NewParserFactory creates a new ParserFactory
func NewParserFactory(logger *zap.Logger) *ParserFactory {
	return &ParserFactory{
		logger: logger,
	}
}

// CreateTextProcessor creates the body normalizer shared by the parser and
// the reply service
func (f *ParserFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger.Named("text"))
}

// CreateParser creates a message parser normalizing bodies with textProcessor
func (f *ParserFactory) CreateParser(textProcessor *utils.TextProcessor) *parser.Parser {
	return parser.NewParser(f.logger.Named("parser"), textProcessor)
}
