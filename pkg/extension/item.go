package extension

// Action is a named, invocable operation attached to an item.
type Action struct {
	// ID identifies the action within its item.
	ID string

	// Text is the display text of the action.
	Text string

	// Run invokes the action. It runs synchronously on the calling
	// goroutine and reports failure through its error.
	Run func() error
}

// Item is a displayable result produced by a query handler. Items are
// immutable once built and shared by reference; a query holds them until it
// is released.
type Item interface {
	// ID identifies the item within its handler.
	ID() string

	// Text returns the primary display text.
	Text() string

	// Subtext returns the secondary display text.
	Subtext() string

	// InputActionText returns the text the input line should be replaced
	// with when the item is selected for completion.
	InputActionText() string

	// Actions returns the ordered list of actions. The first action is the
	// default one.
	Actions() []Action
}

// RankItem is an item plus a handler-assigned relevance score used for
// merge-ranking in global queries. Scores are only compared, never summed;
// any consistent scale works.
type RankItem struct {
	Item  Item
	Score float32
}

// StandardItem is the canonical Item implementation.
type StandardItem struct {
	id              string
	text            string
	subtext         string
	inputActionText string
	actions         []Action
}

// NewItem builds an immutable standard item.
func NewItem(id, text, subtext string, actions ...Action) *StandardItem {
	return &StandardItem{
		id:      id,
		text:    text,
		subtext: subtext,
		actions: actions,
	}
}

// WithInputActionText returns a copy of the item with completion text set.
func (i *StandardItem) WithInputActionText(text string) *StandardItem {
	clone := *i
	clone.inputActionText = text

	return &clone
}

func (i *StandardItem) ID() string { return i.id }

func (i *StandardItem) Text() string { return i.text }

func (i *StandardItem) Subtext() string { return i.subtext }

func (i *StandardItem) InputActionText() string { return i.inputActionText }

// Actions returns the item's actions.
func (i *StandardItem) Actions() []Action {
	return i.actions
}
