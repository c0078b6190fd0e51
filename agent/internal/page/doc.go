// Package page gives the agent read access to a live dashboard page.
//
// A Source returns parsed snapshots of the current DOM and emits Events
// when the page location changes without a full reload (SPA navigation) or
// when the overlay asks for the summary view. Two sources exist:
//
//   - RodSource attaches over the Chrome DevTools protocol to an already
//     open tab whose URL matches a pattern. It never navigates or reloads
//     the tab; it only reads outerHTML and listens for navigation events.
//   - FileSource watches an HTML capture on disk. Every rewrite of the file
//     is treated as a page load, and the page URL is taken from the
//     capture's canonical link when the configuration does not pin one.
package page
