package wallet

const (
	topicBalanceChange      = "wallet:balance-change"
	topicNewTransaction     = "wallet:new-transaction"
	topicConfirmationChange = "wallet:confirmation-change"
	topicReattachment       = "wallet:reattachment"
)

// OnBalanceChange registers a handler for balance changes. Handlers run on
// their own goroutine, one event at a time per handler.
func (m *Manager) OnBalanceChange(handler func(BalanceChangeEvent)) error {
	return m.bus.SubscribeAsync(topicBalanceChange, handler, true)
}

// OnNewTransaction registers a handler for newly discovered messages.
func (m *Manager) OnNewTransaction(handler func(TransactionEvent)) error {
	return m.bus.SubscribeAsync(topicNewTransaction, handler, true)
}

// OnConfirmationStateChange registers a handler for inclusion state changes.
func (m *Manager) OnConfirmationStateChange(handler func(ConfirmationChangeEvent)) error {
	return m.bus.SubscribeAsync(topicConfirmationChange, handler, true)
}

// OnReattachment registers a handler for reattached messages.
func (m *Manager) OnReattachment(handler func(TransactionEvent)) error {
	return m.bus.SubscribeAsync(topicReattachment, handler, true)
}

func (m *Manager) emitBalanceChange(ev BalanceChangeEvent) {
	m.logger.Debug("balance change", "account", ev.AccountID, "address", ev.Address,
		"spent", ev.BalanceChange.Spent, "received", ev.BalanceChange.Received)
	m.bus.Publish(topicBalanceChange, ev)
}

func (m *Manager) emitNewTransaction(ev TransactionEvent) {
	m.logger.Debug("new transaction", "account", ev.AccountID, "message", ev.Message.ID.String())
	m.bus.Publish(topicNewTransaction, ev)
}

func (m *Manager) emitConfirmationChange(ev ConfirmationChangeEvent) {
	m.logger.Debug("confirmation change", "account", ev.AccountID, "message", ev.Message.ID.String(), "confirmed", ev.Confirmed)
	m.bus.Publish(topicConfirmationChange, ev)
}

func (m *Manager) emitReattachment(ev TransactionEvent) {
	m.logger.Debug("reattachment", "account", ev.AccountID, "message", ev.Message.ID.String())
	m.bus.Publish(topicReattachment, ev)
}
