// # Description
//
// Package cfg builds control flow graphs (CFG) over the normalized syntax tree of a
// probabilistic program.
//
// ## Control Flow Graph (CFG)
//
// A CFG is a representation, using graph notation, of all paths that might be traversed
// through a program during its execution. In this package:
//
//   - Each node is one statement, or one of the structural nodes a statement expands into
//     (a Branch/Join pair for if, while and for, a LoopIter binding the loop variable).
//   - The directed edges represent jumps in the control flow.
//
// One graph is built for the module top level and one per function definition. Function
// graphs run FuncStart, one FuncArg per parameter, the body, and a FuncJoin collecting every
// return (fall-through is an implicit `return None`) before End.
//
// ## Invariants
//
// Every graph is verified after construction:
//
//  1. Start has no parent and one child; End has one parent and no child.
//  2. Parent and child edges are symmetric.
//  3. Nodes other than Branch, Join and FuncJoin have exactly one parent and one child.
//  4. Every Join (and FuncJoin) has exactly one child; Branch and Join are paired.
//  5. Branch/Join regions are nested or disjoint, never interleaved.
//
// A violation is reported as ErrInvariant and means the graph must not be analyzed.
package cfg
