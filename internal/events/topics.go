package events

// Topic constants for session events emitted by the storefront service.
const (
	TopicCartItemAdded     = "cart.item_added"
	TopicCheckoutSubmitted = "checkout.submitted"
	TopicCheckoutSucceeded = "checkout.succeeded"
	TopicCheckoutFailed    = "checkout.failed"
	TopicCheckoutDismissed = "checkout.dismissed"
)

// DefaultTopics returns the canonical list of emitted topics.
func DefaultTopics() []string {
	return []string{
		TopicCartItemAdded,
		TopicCheckoutSubmitted,
		TopicCheckoutSucceeded,
		TopicCheckoutFailed,
		TopicCheckoutDismissed,
	}
}
