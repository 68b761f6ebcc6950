// Package types defines the contracts between the resilience layer and its
// external collaborators.
//
// Core Types:
//   - FileDescriptor: the input file handed to converters and strategies
//   - ConversionResult: outcome of one conversion attempt
//   - ValidationResult: structural issues reported before conversion
//
// Collaborators:
//   - Converter: attempts to produce converted output
//   - Validator: reports structural issues for files it understands
//
// Example Usage:
//
//	file, err := types.Describe("/data/in/report.pdf")
//	if err != nil {
//	    return err
//	}
//	result, err := converter.Convert(ctx, file, "/data/out/report.txt")
package types
