// Package graph defines the scene graph produced by evaluating a splash
// script. The scene graph is an immutable DAG of primitives, placements,
// assemblies and an emitter describing where splashback originates.
package graph
