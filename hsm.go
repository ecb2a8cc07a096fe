// Package hsm provides a hierarchical state machine engine for Go.
//
// A machine is declared over a closed enumeration of integer states whose
// zero value is reserved as "no state". Superstates group substates and
// remember the last substate left when declared with MemoryDeep. States carry
// entry and exit hooks, transitions carry guards and actions, and errors
// raised by user code are routed to error states through exception tables
// declared on the machine, on superstates, or on single transitions.
//
// Events are processed one at a time. After each event the machine follows
// null transitions until none applies, bounded by a step limit. Every path
// step and every caught error is published to subscribed observers.
//
//	m, _ := hsm.New("door", []Door{Open, Closed, Locked})
//	m.In(Open).On(hsm.NewEvent("close", nil)).Goto(Closed)
//	m.In(Closed).On(hsm.NewEvent("open", nil)).Goto(Open)
//	_ = m.Initialize(Open, false)
//	_, _ = m.Start(ctx, nil)
//	_, _ = m.Fire(ctx, hsm.NewEvent("close", nil))
package hsm
