// Package physics provides concrete subsystems that realize their equations
// of motion through the staged state:
//
//   - [SpringChain]: masses on a line joined by springs, walls at both ends
//   - [Pendulum]: a point mass in Cartesian coordinates held at a fixed
//     distance from the pivot by a constraint
//
// Each keeps its parameters as discrete variables so that changing one
// invalidates exactly the stages that depend on it, and computes its
// mechanical energy at Report for [TotalEnergy].
package physics
