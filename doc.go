// Package specbind binds an OpenAPI/Swagger specification to interchangeable
// HTTP backends. The specification is the source of truth for routing:
// every declared operation becomes a route on whatever server the
// application runs on, and handlers never see backend types.
//
// The core handler signature takes a canonical request and returns one of a
// closed set of result shapes:
//
//	type HandlerFunc func(ctx context.Context, req *Request) (Result, error)
//
//	specbind.Data(pet)                          // 200 with a JSON body
//	specbind.Status(pet, http.StatusCreated)    // explicit status
//	specbind.StatusHeaders(nil, 202, headers)   // status and headers
//	&specbind.Response{...}                     // full control
//	specbind.Native(req.NativeResponse())       // handler wrote the native response
//
// An App owns one backend and any number of mounted APIs:
//
//	doc, _ := spec.Load("petstore.yaml")
//	app := specbind.New(nethttp.New(), specbind.WithLogger(logger))
//	app.AddAPI(doc, specbind.Handlers{"listPets": listPets})
//
// Every error a handler returns, and every panic, is normalized into an
// RFC 9457 problem document before it reaches the backend.
package specbind
