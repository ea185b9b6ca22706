// Package browser implements driver.Page on a real Chrome tab through the
// DevTools protocol (chromedp).
//
// A Session owns one browser, either started locally or reached through a
// remote DevTools URL. Each collated page is opened in its own tab by
// Session.Open, which applies the site cookie, extra headers and user agent
// before navigating. The returned Page drives <select> controls by script,
// dispatching the input and change events a page's own code listens to,
// and reads the result table markup, which ParseTable turns into raw rows.
//
// Layout tells a Page which selectors to use; it is filled from the site
// configuration.
package browser
