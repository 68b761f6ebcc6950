/*
Package recovery decides what to do after a conversion fails.

An Orchestrator classifies the failure into a taxonomy kind, looks up an
ordered list of actions in its RuleTable and runs them until one succeeds:

	retry             re-run the conversion through the "error_recovery" breaker
	fallback          hand the file to the fallback.Manager
	validate_first    retry if the validator accepts the file, else fall back
	repair_document   delegate to a Repairer, if one is installed
	skip_file         always succeeds with a cancelled result
	abort_batch       fails with ErrBatchAborted, which stops the loop
	user_intervention ask an InterventionHandler, then run its choice

Rule lookup tries the exact kind, then the first registered rule whose kind
is a supertype, then DefaultActions.
*/
package recovery
