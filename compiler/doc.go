/*
Package compiler glues the stages together.

	Source Text ->
		front: parse ->
	Abstract Syntax Tree (ast) ->
		back: lower against isa.Dialect ->
	Instruction Stream (asm) ->
		opt: peephole ->
	Instruction Stream (asm) ->
		format: listing ->
	Assembly Text

The dialect is parsed once by isa.Parse and shared read-only by every stage.
*/
package compiler
