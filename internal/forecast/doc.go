// Package forecast implements the hierarchical demand forecasting engine:
// the calendar-week train/test split, the per-entity sufficiency gate, the
// pooled-plus-dedicated model hierarchy with graceful fallback, and the
// wmape-based confidence classification.
//
// The pooled model is both default and safety net. It is trained before any
// prediction is made, is safe for concurrent read access, and serves every
// entity that lacks a dedicated model, never raising for an unseen entity.
// Training-data sufficiency, not entity importance, decides specialization.
package forecast
