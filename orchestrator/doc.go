// Package orchestrator invokes agents with retries and fallbacks.
//
// One call makes up to maxAttempts sequential submissions to a Provider.
// Every attempt runs under a fresh session id derived from the input and
// the attempt number. Only the final event of a stream is considered. A
// reply that is too short or contains a refusal is a failure like any
// provider error.
//
// Failures are classified by substring match against a list of retryable
// markers. A retryable failure is followed by a 2^attempt backoff and
// another attempt. Once the last retryable attempt fails, the canned reply
// registered for the agent's role is returned instead. Anything else is
// returned to the caller immediately.
//
//	o := orchestrator.New(orchestrator.NewRunnerProvider(), func(o *orchestrator.Options) {
//		o.Fallbacks = map[string]string{"outfit_recommendation": `{"outfits":[]}`}
//	})
//	text, err := o.Invoke(ctx, stylistAgent, prompt, 3)
package orchestrator
