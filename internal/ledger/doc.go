// Package ledger defines the normalized transaction schema the forecasting
// core consumes, ISO-week keys used for all temporal ordering, and the CSV
// boundary loaders that hand data to the pipeline. Raw source parsing
// (spreadsheets, exports from upstream systems) happens outside this module;
// collaborators are expected to deliver files already matching this schema.
package ledger
