// Package service holds the identity use cases that sit on top of the store:
// account registration and sign-in, profile claims, grant housekeeping and
// client seeding.
//
// AccountService is the library surface for the sign-in and registration
// pages, which live outside this module. Inside the binary only Register has
// a caller (the create-user command); password sign-in, external logins,
// password changes and the two-factor flows are exercised by their tests.
package service
