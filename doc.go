// Package bscript serves HTTP requests with scripts that steer their own request: they write a buffered response and
// end it with one of three control operations.
//
// # Overview
//
// A script route is registered on a [ServeMux] like any other handler:
//
//	mux := bscript.NewServeMux()
//	mux.HandleScript("GET /old/{id}", bscript.ScriptFunc(func(r *bscript.Request) error {
//	    return bscript.Redirect(r, "/new/"+r.URI(), bscript.CodeMovedPermanently)
//	}))
//
// Each request gets a [Request] handle. Everything a script does to its request goes through that handle and the
// control operations that take it:
//
//   - [Exec] serves the request from another uri of the same mux (an internal redirect)
//   - [Redirect] answers with a 301 or 302 and a Location header
//   - [Exit] finalizes the request with a status code
//
// The operations record their decision in the request's [ControlState] and then suspend the script. The scripts
// themselves are usually Lua, see the luaapi package.
//
// # Suspension
//
// A script runs on a [Task], a coroutine driven by an [Executor]. When the script suspends, the executor asks the
// pipeline what to do: a suspension without a decision (a flush) is resumed, after the other requests on the same
// executor got their turn. A suspension after a decision is final, the script never continues and the pipeline acts
// on the decision instead.
//
// # Headers sent
//
// Responses are buffered in a [ResponseWriter] until the script sends them, or until the request ends. Once the
// headers are sent the response can no longer be replaced: [Exec] and [Redirect] fail, and [Exit] only accepts
// codes below [SpecialResponse].
//
// # Errors
//
// Operations fail with errors marked with one of [ErrArgument], [ErrState] or [ErrResource]. Scripts can catch
// them. Internal redirects to an unsafe uri are different: the request is marked as failed with [ErrSafety] and the
// script does not get control back, the client gets a 500.
//
// Plain handlers return errors, an [*Error] created with [NewError] picks the status code:
//
//	return bscript.NewError(bscript.CodeNotFound, errors.New("no such item"))
//
// Other errors are logged through the [Logger] and become a 500 Internal Server Error.
//
// # Middleware and named routes
//
// [Middleware] wraps [BareHandler] values and applies to script routes too; register it with [ServeMux.Use] before
// any route. Routes can be named and turned back into urls with [ServeMux.Reverse], which is how scripts find the
// target of an internal redirect without hardcoding paths.
package bscript
