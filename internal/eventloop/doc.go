// Package eventloop provides the single-goroutine dispatch context that
// owns "UI" state in a loopdb process.
//
// Producers on any goroutine hand work to the loop with Post; the loop
// runs it in FIFO order on the goroutine executing Run. Nothing posted is
// ever executed inline by Post.
//
// Usage:
//
//	loop := eventloop.New(cfg.EventLoop)
//	ctx = eventloop.WithDispatcher(ctx, loop)
//	go worker(ctx)     // off-loop database calls
//	return loop.Run(ctx)
package eventloop
