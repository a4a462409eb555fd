package exchange

import (
	"echo/internal/logging"
	"echo/protocol"
)

// RunIncoming drives an Incoming FSM to completion against store, recv,
// and send, exactly per the loop in spec.md §4.6: take a snapshot, step,
// and either continue, fail, or terminate. It returns the ProtocolViolation
// that ended the exchange, or nil on clean termination. log may be nil,
// in which case transitions fall back to the package-global logger; pass
// a site-scoped logger (logging.Logger.WithSite) to correlate an
// exchange's transitions with the rest of that site's log lines.
func RunIncoming(store *Store, recv <-chan protocol.Outgoing, send chan<- protocol.Incoming, initial protocol.IncomingState, log *logging.Logger) error {
	inserted, unsubscribe := store.Subscribe()
	defer unsubscribe()

	state := initial
	for {
		env := protocol.IncomingEnv{
			Log:      store.Snapshot(),
			Recv:     recv,
			Send:     send,
			Inserted: inserted,
			Set:      store.Set,
		}
		effect := state.Step(env)
		if next, ok := effect.Next(); ok {
			log.Debug("incoming state transition", logging.Transition(state.Name(), next.Name())...)
			state = next
			continue
		}
		if err := effect.Err(); err != nil {
			log.Warn("incoming exchange failed", logging.String("state", state.Name()), logging.Error(err))
			return err
		}
		log.Debug("incoming exchange terminated", logging.String("state", state.Name()))
		return nil
	}
}

// RunOutgoing drives an Outgoing FSM to completion against store, recv,
// and send, mirroring RunIncoming.
func RunOutgoing(store *Store, recv <-chan protocol.Incoming, send chan<- protocol.Outgoing, initial protocol.OutgoingState, log *logging.Logger) error {
	inserted, unsubscribe := store.Subscribe()
	defer unsubscribe()

	state := initial
	for {
		env := protocol.OutgoingEnv{
			Log:      store.Snapshot(),
			Recv:     recv,
			Send:     send,
			Inserted: inserted,
			Set:      store.Set,
		}
		effect := state.Step(env)
		if next, ok := effect.Next(); ok {
			log.Debug("outgoing state transition", logging.Transition(state.Name(), next.Name())...)
			state = next
			continue
		}
		if err := effect.Err(); err != nil {
			log.Warn("outgoing exchange failed", logging.String("state", state.Name()), logging.Error(err))
			return err
		}
		log.Debug("outgoing exchange terminated", logging.String("state", state.Name()))
		return nil
	}
}
