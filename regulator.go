package qweave

/*
Regulator defines an interface for types that regulate how far the engine is
allowed to grow. Like a thermostat or pressure regulator in physical
systems, a regulator keeps the engine within its operational parameters.

Examples of regulators include:
  - ResourceGovernorRegulator: refuses tensors that would exceed the memory
    ceiling, then holds growth at its peak until renormalized
*/
type Regulator interface {
	// Observe allows the regulator to monitor engine metrics.
	//
	// Parameters:
	//   - metrics: Current engine metrics
	Observe(metrics *Metrics)

	// Limit determines if further growth should be restricted.
	//
	// Returns:
	//   - bool: true if the action should be limited, false if it should proceed
	Limit() bool

	// Renormalize returns the regulator to its normal operating state after a
	// period of restriction.
	Renormalize()
}

/*
NewRegulator creates a new regulator of the specified type.

Parameters:
  - regulatorType: A concrete implementation of the Regulator interface

Returns:
  - Regulator: The initialized regulator instance

Example:

	governor := NewResourceGovernorRegulator(1<<30, metrics)
	regulator := NewRegulator(governor)
*/
func NewRegulator(regulatorType Regulator) Regulator {
	return regulatorType
}
