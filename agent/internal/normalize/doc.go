// Package normalize turns free-form dashboard text into numbers.
//
// ToNumber reads the first numeric token of a string after Unicode
// compatibility normalisation, so full-width digits and the various
// no-break spaces used as thousands separators are handled the same way as
// ASCII input. ExtractRatio finds "used of limit" pairs such as
// "1,234 of 10,000" or "80 / 100" anywhere in a block of text.
//
// Nothing in this package panics on arbitrary input; text without a usable
// number yields ok == false.
package normalize
